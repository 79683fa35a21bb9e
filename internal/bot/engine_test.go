package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tadbirbot/internal/broadcast"
	"tadbirbot/internal/outbound"
	"tadbirbot/internal/qr"
	"tadbirbot/internal/storage"
	"tadbirbot/internal/storage/memory"
)

const bootstrapAdminID int64 = 1000

// sentText is one recorded SendText call.
type sentText struct {
	chatID int64
	text   string
}

// sentButtons is one recorded SendButtons call.
type sentButtons struct {
	chatID int64
	text   string
	rows   [][]outbound.Button
}

// sentPhoto is one recorded SendPhoto call.
type sentPhoto struct {
	chatID   int64
	photoURL string
	caption  string
}

// sentCopy is one recorded CopyMessage call.
type sentCopy struct {
	dstChatID int64
	srcChatID int64
	messageID int
}

// recorder is an outbound.Sender that records every call. failWith, when
// set, makes every call fail.
type recorder struct {
	mu       sync.Mutex
	texts    []sentText
	buttons  []sentButtons
	photos   []sentPhoto
	copies   []sentCopy
	failWith error
}

func (r *recorder) SendText(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.texts = append(r.texts, sentText{chatID, text})
	return nil
}

func (r *recorder) SendButtons(_ context.Context, chatID int64, text string, rows [][]outbound.Button) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.buttons = append(r.buttons, sentButtons{chatID, text, rows})
	return nil
}

func (r *recorder) SendPhoto(_ context.Context, chatID int64, photoURL, caption string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.photos = append(r.photos, sentPhoto{chatID, photoURL, caption})
	return nil
}

func (r *recorder) CopyMessage(_ context.Context, dstChatID, srcChatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.copies = append(r.copies, sentCopy{dstChatID, srcChatID, messageID})
	return nil
}

func (r *recorder) lastText(t *testing.T) sentText {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		t.Fatal("no texts sent")
	}
	return r.texts[len(r.texts)-1]
}

func newTestEngine(t *testing.T) (*Engine, storage.Store, *recorder) {
	t.Helper()
	store := memory.NewStore()
	out := &recorder{}
	e := New(store, out, broadcast.NewPool(2), bootstrapAdminID)
	return e, store, out
}

func userMsg(userID, chatID int64, text string) Inbound {
	return Inbound{UpdateID: 1, ChatID: chatID, MessageID: 1, UserID: userID, Username: "user", Text: text}
}

func mustHandle(t *testing.T, e *Engine, in Inbound) {
	t.Helper()
	if err := e.HandleMessage(context.Background(), in); err != nil {
		t.Fatalf("HandleMessage(%q): %v", in.Text, err)
	}
}

func TestRegistrationFlow(t *testing.T) {
	e, store, out := newTestEngine(t)
	const userID, chatID int64 = 7, 7

	mustHandle(t, e, userMsg(userID, chatID, "/start"))
	if got := out.lastText(t).text; got != memory.DefaultGreetingText {
		t.Fatalf("greeting = %q", got)
	}

	mustHandle(t, e, userMsg(userID, chatID, "Ali Valiyev"))
	if got := out.lastText(t).text; got != memory.DefaultAskPhoneText {
		t.Fatalf("after name = %q", got)
	}

	mustHandle(t, e, userMsg(userID, chatID, "+998901234567"))
	if got := out.lastText(t).text; got != memory.DefaultAskJobText {
		t.Fatalf("after phone = %q", got)
	}

	mustHandle(t, e, userMsg(userID, chatID, "Muhandis"))
	if got := out.lastText(t).text; got != memory.DefaultDoneText {
		t.Fatalf("after job = %q", got)
	}

	if len(out.photos) != 1 {
		t.Fatalf("photos = %d, want 1", len(out.photos))
	}
	wantPayload := "Ali Valiyev,+998901234567"
	if out.photos[0].photoURL != qr.URL(wantPayload) {
		t.Fatalf("qr url = %q", out.photos[0].photoURL)
	}
	if !strings.HasSuffix(out.photos[0].caption, wantPayload) {
		t.Fatalf("qr caption = %q", out.photos[0].caption)
	}

	u, ok := store.Users.(*memory.Users).Get(userID)
	if !ok {
		t.Fatal("user not stored")
	}
	if u.Name != "Ali Valiyev" || u.Phone != "+998901234567" || u.Job != "Muhandis" {
		t.Fatalf("stored user = %+v", u)
	}
}

func TestRegisteredUserGetsStaticReply(t *testing.T) {
	e, _, out := newTestEngine(t)
	const userID, chatID int64 = 8, 8

	for _, text := range []string{"Ali", "+99890", "ish"} {
		mustHandle(t, e, userMsg(userID, chatID, text))
	}
	mustHandle(t, e, userMsg(userID, chatID, "yana bir xabar"))
	if got := out.lastText(t).text; got != alreadyRegisteredText {
		t.Fatalf("done reply = %q", got)
	}
}

func TestResetRestartsMidFlow(t *testing.T) {
	e, store, out := newTestEngine(t)
	const userID, chatID int64 = 9, 9

	mustHandle(t, e, userMsg(userID, chatID, "Ali"))
	mustHandle(t, e, userMsg(userID, chatID, "/start"))
	if got := out.lastText(t).text; got != memory.DefaultGreetingText {
		t.Fatalf("after reset = %q", got)
	}
	u, _ := store.Users.(*memory.Users).Get(userID)
	if u.Name != "" || u.Phone != "" || u.Job != "" {
		t.Fatalf("reset left fields: %+v", u)
	}

	// Next message restarts from the name step.
	mustHandle(t, e, userMsg(userID, chatID, "Vali"))
	if got := out.lastText(t).text; got != memory.DefaultAskPhoneText {
		t.Fatalf("after new name = %q", got)
	}
}

func TestNonAdminMediaGetsTextOnlyReply(t *testing.T) {
	e, _, out := newTestEngine(t)
	mustHandle(t, e, userMsg(10, 10, ""))
	if got := out.lastText(t).text; got != textOnlyText {
		t.Fatalf("media reply = %q", got)
	}
}

func TestDoneEnrollsIntoActiveEvent(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ev, err := store.Events.Create(context.Background(), "Konferensiya", time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Events.SetCurrent(context.Background(), ev.ID); err != nil {
		t.Fatal(err)
	}

	const userID int64 = 11
	for _, text := range []string{"Ali", "+99890", "ish"} {
		mustHandle(t, e, userMsg(userID, userID, text))
	}

	enr := store.Enrollments.(*memory.Enrollments)
	if enr.Count() != 1 {
		t.Fatalf("enrollments = %d, want 1", enr.Count())
	}

	// Completing again via reset does not duplicate the enrollment.
	mustHandle(t, e, userMsg(userID, userID, "/start"))
	for _, text := range []string{"Ali", "+99890", "ish"} {
		mustHandle(t, e, userMsg(userID, userID, text))
	}
	if enr.Count() != 1 {
		t.Fatalf("enrollments after repeat = %d, want 1", enr.Count())
	}
}

func TestDoneWithoutActiveEventSkipsEnrollment(t *testing.T) {
	e, store, _ := newTestEngine(t)
	for _, text := range []string{"Ali", "+99890", "ish"} {
		mustHandle(t, e, userMsg(12, 12, text))
	}
	if n := store.Enrollments.(*memory.Enrollments).Count(); n != 0 {
		t.Fatalf("enrollments = %d, want 0", n)
	}
}

func TestAdminMessageCapturedAsBroadcast(t *testing.T) {
	e, store, out := newTestEngine(t)
	in := Inbound{UpdateID: 1, ChatID: 500, MessageID: 42, UserID: bootstrapAdminID, Username: "boss", Text: "Hammaga salom"}
	mustHandle(t, e, in)

	if len(out.buttons) != 1 || out.buttons[0].text != broadcastConfirmText {
		t.Fatalf("confirm prompt = %+v", out.buttons)
	}

	st, err := store.Settings.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	pb, ok := st.Pending()
	if !ok || pb.ChatID != 500 || pb.MessageID != 42 {
		t.Fatalf("pending = %+v ok=%v", pb, ok)
	}
}

func TestAdminMediaCapturedAsBroadcast(t *testing.T) {
	e, store, _ := newTestEngine(t)
	// Bare media arrives with empty text and must still be captured.
	in := Inbound{UpdateID: 1, ChatID: 500, MessageID: 77, UserID: bootstrapAdminID, Text: ""}
	mustHandle(t, e, in)

	st, _ := store.Settings.Get(context.Background())
	pb, ok := st.Pending()
	if !ok || pb.MessageID != 77 {
		t.Fatalf("pending = %+v ok=%v", pb, ok)
	}
}

func TestNewerCaptureOverwritesPending(t *testing.T) {
	e, store, _ := newTestEngine(t)
	mustHandle(t, e, Inbound{ChatID: 500, MessageID: 1, UserID: bootstrapAdminID, Text: "birinchi"})
	mustHandle(t, e, Inbound{ChatID: 500, MessageID: 2, UserID: bootstrapAdminID, Text: "ikkinchi"})

	st, _ := store.Settings.Get(context.Background())
	pb, ok := st.Pending()
	if !ok || pb.MessageID != 2 {
		t.Fatalf("pending = %+v ok=%v", pb, ok)
	}
}

func TestBroadcastConfirmFansOutAndClears(t *testing.T) {
	e, store, out := newTestEngine(t)
	ctx := context.Background()

	// Three registered recipients.
	for _, id := range []int64{21, 22, 23} {
		if _, err := store.Users.GetOrCreate(ctx, id, ""); err != nil {
			t.Fatal(err)
		}
	}
	mustHandle(t, e, Inbound{ChatID: 500, MessageID: 9, UserID: bootstrapAdminID, Text: "eʼlon"})

	cb := InboundCallback{ChatID: 500, UserID: bootstrapAdminID, Data: cbBroadcastYes}
	if err := e.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Admin itself registered via GetOrCreate on capture, so 4 copies.
	if len(out.copies) != 4 {
		t.Fatalf("copies = %d, want 4", len(out.copies))
	}
	for _, c := range out.copies {
		if c.srcChatID != 500 || c.messageID != 9 {
			t.Fatalf("copy source = %+v", c)
		}
	}
	if got := out.lastText(t).text; got != fmt.Sprintf(broadcastDoneTextFmt, 4) {
		t.Fatalf("done report = %q", got)
	}

	// Second press finds the slot already claimed.
	if err := e.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if len(out.copies) != 4 {
		t.Fatalf("copies after double press = %d, want 4", len(out.copies))
	}
	if got := out.lastText(t).text; got != broadcastEmptyText {
		t.Fatalf("double press reply = %q", got)
	}
}

func TestBroadcastCancelClearsWithoutSending(t *testing.T) {
	e, store, out := newTestEngine(t)
	ctx := context.Background()
	mustHandle(t, e, Inbound{ChatID: 500, MessageID: 9, UserID: bootstrapAdminID, Text: "eʼlon"})

	cb := InboundCallback{ChatID: 500, UserID: bootstrapAdminID, Data: cbBroadcastNo}
	if err := e.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(out.copies) != 0 {
		t.Fatalf("copies = %d, want 0", len(out.copies))
	}
	if got := out.lastText(t).text; got != broadcastCancelText {
		t.Fatalf("cancel reply = %q", got)
	}

	st, _ := store.Settings.Get(ctx)
	if _, ok := st.Pending(); ok {
		t.Fatal("pending slot not cleared")
	}
}

func TestBroadcastConfirmWithEmptySlot(t *testing.T) {
	e, _, out := newTestEngine(t)
	cb := InboundCallback{ChatID: 500, UserID: bootstrapAdminID, Data: cbBroadcastYes}
	if err := e.HandleCallback(context.Background(), cb); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := out.lastText(t).text; got != broadcastEmptyText {
		t.Fatalf("empty slot reply = %q", got)
	}
}

func TestBroadcastCallbackRejectsNonAdmin(t *testing.T) {
	e, store, out := newTestEngine(t)
	ctx := context.Background()
	mustHandle(t, e, Inbound{ChatID: 500, MessageID: 9, UserID: bootstrapAdminID, Text: "eʼlon"})

	cb := InboundCallback{ChatID: 600, UserID: 600, Data: cbBroadcastYes}
	if err := e.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if got := out.lastText(t).text; got != notAdminText {
		t.Fatalf("non-admin reply = %q", got)
	}

	// Slot survives the rejected press.
	st, _ := store.Settings.Get(ctx)
	if _, ok := st.Pending(); !ok {
		t.Fatal("pending slot lost to non-admin press")
	}
}

func TestDynamicAdminIsPrivileged(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()
	if _, err := store.Admins.Add(ctx, 777, ""); err != nil {
		t.Fatal(err)
	}

	mustHandle(t, e, Inbound{ChatID: 777, MessageID: 3, UserID: 777, Text: "eʼlon"})
	st, _ := store.Settings.Get(ctx)
	if _, ok := st.Pending(); !ok {
		t.Fatal("dynamic admin message not captured")
	}
}

func TestAdminCommandMyID(t *testing.T) {
	e, _, out := newTestEngine(t)
	mustHandle(t, e, Inbound{ChatID: 500, UserID: bootstrapAdminID, Username: "boss", Text: "/myid"})
	want := fmt.Sprintf(myIDUsernameTextFmt, bootstrapAdminID, "boss")
	if got := out.lastText(t).text; got != want {
		t.Fatalf("myid reply = %q, want %q", got, want)
	}
}

func TestAdminCommandAddAndList(t *testing.T) {
	e, _, out := newTestEngine(t)
	admin := Inbound{ChatID: 500, UserID: bootstrapAdminID}

	admin.Text = "/addadmin"
	mustHandle(t, e, admin)
	if got := out.lastText(t).text; got != adminUsageAddText {
		t.Fatalf("usage reply = %q", got)
	}

	admin.Text = "/addadmin abc"
	mustHandle(t, e, admin)
	if got := out.lastText(t).text; got != adminNotNumericText {
		t.Fatalf("non-numeric reply = %q", got)
	}

	admin.Text = "/addadmin 4242"
	mustHandle(t, e, admin)
	if got := out.lastText(t).text; got != fmt.Sprintf(adminAddedTextFmt, 4242) {
		t.Fatalf("added reply = %q", got)
	}

	mustHandle(t, e, admin)
	if got := out.lastText(t).text; got != fmt.Sprintf(adminExistsTextFmt, 4242) {
		t.Fatalf("duplicate reply = %q", got)
	}

	admin.Text = "/admins"
	mustHandle(t, e, admin)
	list := out.lastText(t).text
	if !strings.Contains(list, fmt.Sprintf(adminListBootstrapFmt, bootstrapAdminID)) {
		t.Fatalf("list missing bootstrap: %q", list)
	}
	if !strings.Contains(list, "4242") {
		t.Fatalf("list missing added admin: %q", list)
	}
}

func TestAdminCommandRemove(t *testing.T) {
	e, store, out := newTestEngine(t)
	ctx := context.Background()
	if _, err := store.Admins.Add(ctx, 4242, ""); err != nil {
		t.Fatal(err)
	}
	admin := Inbound{ChatID: 500, UserID: bootstrapAdminID}

	admin.Text = "/removeadmin " + fmt.Sprint(bootstrapAdminID)
	mustHandle(t, e, admin)
	if got := out.lastText(t).text; got != adminSelfRemoveText {
		t.Fatalf("self-remove reply = %q", got)
	}

	admin.Text = "/removeadmin 5555"
	mustHandle(t, e, admin)
	if got := out.lastText(t).text; got != fmt.Sprintf(adminAbsentTextFmt, 5555) {
		t.Fatalf("absent reply = %q", got)
	}

	admin.Text = "/removeadmin 4242"
	mustHandle(t, e, admin)
	if got := out.lastText(t).text; got != fmt.Sprintf(adminRemovedTextFmt, 4242) {
		t.Fatalf("removed reply = %q", got)
	}
	ok, _ := store.Admins.IsAdmin(ctx, 4242)
	if ok {
		t.Fatal("admin still present after removal")
	}
}

func TestUnknownSlashBecomesBroadcast(t *testing.T) {
	e, store, _ := newTestEngine(t)
	mustHandle(t, e, Inbound{ChatID: 500, MessageID: 5, UserID: bootstrapAdminID, Text: "/announce hamma joyga"})
	st, _ := store.Settings.Get(context.Background())
	if _, ok := st.Pending(); !ok {
		t.Fatal("unrecognized slash command not captured as broadcast")
	}
}

func TestRSVPCallbacks(t *testing.T) {
	e, store, out := newTestEngine(t)
	ctx := context.Background()

	u, _ := store.Users.GetOrCreate(ctx, 30, "")
	ev, _ := store.Events.Create(ctx, "Tadbir", time.Now().Add(24*time.Hour))
	if err := store.Enrollments.Ensure(ctx, u.ID, ev.ID); err != nil {
		t.Fatal(err)
	}
	enr, _ := store.Enrollments.Get(ctx, 1)
	if enr == nil {
		t.Fatal("enrollment missing")
	}

	yes := InboundCallback{ChatID: 30, UserID: 30, Data: rsvpCallbackData(cbEventYes, enr.ID)}
	if err := e.HandleCallback(ctx, yes); err != nil {
		t.Fatalf("yes: %v", err)
	}
	if got := out.lastText(t).text; got != rsvpYesText {
		t.Fatalf("yes reply = %q", got)
	}
	got, _ := store.Enrollments.Get(ctx, enr.ID)
	if got.Coming == nil || !*got.Coming {
		t.Fatalf("coming = %v, want true", got.Coming)
	}

	no := InboundCallback{ChatID: 30, UserID: 30, Data: rsvpCallbackData(cbEventNo, enr.ID)}
	if err := e.HandleCallback(ctx, no); err != nil {
		t.Fatalf("no: %v", err)
	}
	got, _ = store.Enrollments.Get(ctx, enr.ID)
	if got.Coming == nil || *got.Coming {
		t.Fatalf("coming = %v, want false", got.Coming)
	}
}

func TestRSVPUnknownEnrollmentMutatesNothing(t *testing.T) {
	e, _, out := newTestEngine(t)
	for _, data := range []string{
		rsvpCallbackData(cbEventYes, 999),
		"event_yes:abc",
		"event_no:",
	} {
		cb := InboundCallback{ChatID: 30, UserID: 30, Data: data}
		if err := e.HandleCallback(context.Background(), cb); err != nil {
			t.Fatalf("callback %q: %v", data, err)
		}
		if got := out.lastText(t).text; got != rsvpNotFoundText {
			t.Fatalf("reply for %q = %q", data, got)
		}
	}
}

func TestUnknownCallbackIgnored(t *testing.T) {
	e, _, out := newTestEngine(t)
	cb := InboundCallback{ChatID: 30, UserID: 30, Data: "totally_unknown"}
	if err := e.HandleCallback(context.Background(), cb); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(out.texts) != 0 {
		t.Fatalf("unexpected replies: %+v", out.texts)
	}
}

func TestConcurrentFirstContactCreatesOneUser(t *testing.T) {
	e, store, _ := newTestEngine(t)
	const userID int64 = 40

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- e.HandleMessage(context.Background(), userMsg(userID, userID, "Ali"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent handle: %v", err)
		}
	}

	if n := store.Users.(*memory.Users).Len(); n != 1 {
		t.Fatalf("users = %d, want 1", n)
	}
	// Exactly one message won the ASK_NAME transition.
	u, _ := store.Users.(*memory.Users).Get(userID)
	if u.Name != "Ali" {
		t.Fatalf("name = %q", u.Name)
	}
}

func TestSendFailureNeverPropagates(t *testing.T) {
	store := memory.NewStore()
	out := &recorder{failWith: errors.New("telegram down")}
	e := New(store, out, broadcast.NewPool(2), bootstrapAdminID)

	if err := e.HandleMessage(context.Background(), userMsg(50, 50, "/start")); err != nil {
		t.Fatalf("reset with failing sender: %v", err)
	}
	if err := e.HandleMessage(context.Background(), userMsg(50, 50, "Ali")); err != nil {
		t.Fatalf("step with failing sender: %v", err)
	}
}
