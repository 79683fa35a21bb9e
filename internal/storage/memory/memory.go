// Package memory provides in-memory implementations of the storage
// contracts for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tadbirbot/internal/models"
	"tadbirbot/internal/storage"
)

// Users is an in-memory storage.Users.
type Users struct {
	mu     sync.Mutex
	nextID int64
	byTG   map[int64]*models.User
}

// NewUsers returns an empty Users store.
func NewUsers() *Users {
	return &Users{byTG: make(map[int64]*models.User)}
}

func (s *Users) clone(u *models.User) *models.User {
	c := *u
	return &c
}

// GetOrCreate implements storage.Users.
func (s *Users) GetOrCreate(_ context.Context, telegramID int64, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byTG[telegramID]; ok {
		return s.clone(u), nil
	}
	s.nextID++
	u := &models.User{
		ID:         s.nextID,
		TelegramID: telegramID,
		Username:   username,
		Step:       models.StepAskName,
		CreatedAt:  time.Now(),
	}
	s.byTG[telegramID] = u
	return s.clone(u), nil
}

func (s *Users) byID(id int64) *models.User {
	for _, u := range s.byTG {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// RefreshUsername implements storage.Users.
func (s *Users) RefreshUsername(_ context.Context, id int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byID(id); u != nil {
		u.Username = username
	}
	return nil
}

// Reset implements storage.Users.
func (s *Users) Reset(_ context.Context, telegramID int64, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byTG[telegramID]
	if !ok {
		s.nextID++
		u = &models.User{ID: s.nextID, TelegramID: telegramID, CreatedAt: time.Now()}
		s.byTG[telegramID] = u
	}
	u.Username = username
	u.Name, u.Phone, u.Job = "", "", ""
	u.Step = models.StepAskName
	return s.clone(u), nil
}

func (s *Users) advance(id int64, set func(*models.User), from, to models.Step) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byID(id)
	if u == nil || u.Step != from {
		return false, nil
	}
	set(u)
	u.Step = to
	return true, nil
}

// StoreName implements storage.Users.
func (s *Users) StoreName(_ context.Context, id int64, name string) (bool, error) {
	return s.advance(id, func(u *models.User) { u.Name = name }, models.StepAskName, models.StepAskPhone)
}

// StorePhone implements storage.Users.
func (s *Users) StorePhone(_ context.Context, id int64, phone string) (bool, error) {
	return s.advance(id, func(u *models.User) { u.Phone = phone }, models.StepAskPhone, models.StepAskJob)
}

// StoreJob implements storage.Users.
func (s *Users) StoreJob(_ context.Context, id int64, job string) (bool, error) {
	return s.advance(id, func(u *models.User) { u.Job = job }, models.StepAskJob, models.StepDone)
}

// TelegramIDs implements storage.Users.
func (s *Users) TelegramIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.byTG))
	for tg := range s.byTG {
		ids = append(ids, tg)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Get returns the stored user by telegram id for test assertions.
func (s *Users) Get(telegramID int64) (*models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byTG[telegramID]
	if !ok {
		return nil, false
	}
	return s.clone(u), true
}

// Len reports the number of stored users.
func (s *Users) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byTG)
}

// Settings is an in-memory storage.SettingsStore.
type Settings struct {
	mu sync.Mutex
	st models.Settings
}

// Default prompt texts match the migration defaults.
const (
	DefaultGreetingText = "Assalomu alaykum! Ismingizni kiriting:"
	DefaultAskPhoneText = "Telefon raqamingizni kiriting (masalan: +99890xxxxxxx):"
	DefaultAskJobText   = "Kasbingiz yoki nima ish qilishingizni yozing:"
	DefaultDoneText     = "Rahmat! Mana sizning QR-kodingiz:"
)

// NewSettings returns a settings store seeded with the default texts.
func NewSettings() *Settings {
	return &Settings{st: models.Settings{
		ID:           1,
		GreetingText: DefaultGreetingText,
		AskPhoneText: DefaultAskPhoneText,
		AskJobText:   DefaultAskJobText,
		DoneText:     DefaultDoneText,
	}}
}

// Get implements storage.SettingsStore.
func (s *Settings) Get(_ context.Context) (*models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.st
	return &c, nil
}

// SetPending implements storage.SettingsStore.
func (s *Settings) SetPending(_ context.Context, chatID int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.PendingChatID = &chatID
	s.st.PendingMessageID = &messageID
	return nil
}

// TakePending implements storage.SettingsStore.
func (s *Settings) TakePending(_ context.Context) (models.PendingBroadcast, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.PendingChatID == nil || s.st.PendingMessageID == nil {
		return models.PendingBroadcast{}, false, nil
	}
	pb := models.PendingBroadcast{ChatID: *s.st.PendingChatID, MessageID: *s.st.PendingMessageID}
	s.st.PendingChatID = nil
	s.st.PendingMessageID = nil
	return pb, true, nil
}

// Admins is an in-memory storage.Admins.
type Admins struct {
	mu   sync.Mutex
	list []models.Admin
}

// NewAdmins returns an empty Admins store.
func NewAdmins() *Admins {
	return &Admins{}
}

// IsAdmin implements storage.Admins.
func (s *Admins) IsAdmin(_ context.Context, telegramID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.list {
		if a.TelegramID == telegramID {
			return true, nil
		}
	}
	return false, nil
}

// List implements storage.Admins.
func (s *Admins) List(_ context.Context) ([]models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Admin, len(s.list))
	copy(out, s.list)
	return out, nil
}

// Add implements storage.Admins.
func (s *Admins) Add(_ context.Context, telegramID int64, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.list {
		if a.TelegramID == telegramID {
			return false, nil
		}
	}
	s.list = append(s.list, models.Admin{TelegramID: telegramID, Username: username, AddedAt: time.Now()})
	return true, nil
}

// Remove implements storage.Admins.
func (s *Admins) Remove(_ context.Context, telegramID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.list {
		if a.TelegramID == telegramID {
			s.list = append(s.list[:i], s.list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Events is an in-memory storage.Events.
type Events struct {
	mu     sync.Mutex
	nextID int64
	events []*models.Event
}

// NewEvents returns an empty Events store.
func NewEvents() *Events {
	return &Events{}
}

// Create implements storage.Events.
func (s *Events) Create(_ context.Context, title string, startsAt time.Time) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e := &models.Event{ID: s.nextID, Title: title, StartsAt: startsAt}
	s.events = append(s.events, e)
	c := *e
	return &c, nil
}

// Active implements storage.Events.
func (s *Events) Active(_ context.Context) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.IsActive {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

// SetCurrent implements storage.Events.
func (s *Events) SetCurrent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target *models.Event
	for _, e := range s.events {
		if e.ID == id {
			target = e
			break
		}
	}
	if target == nil {
		return errEventNotFound(id)
	}
	for _, e := range s.events {
		e.IsActive = false
	}
	target.IsActive = true
	return nil
}

// ActiveCount reports how many events are active, for test assertions.
func (s *Events) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.IsActive {
			n++
		}
	}
	return n
}

// Enrollments is an in-memory storage.Enrollments.
type Enrollments struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.Enrollment
	// telegram id lookup for Due joins
	users *Users
}

// NewEnrollments returns an Enrollments store joined against users.
func NewEnrollments(users *Users) *Enrollments {
	return &Enrollments{users: users}
}

// Ensure implements storage.Enrollments.
func (s *Enrollments) Ensure(_ context.Context, userID, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.UserID == userID && r.EventID == eventID {
			return nil
		}
	}
	s.nextID++
	s.rows = append(s.rows, &models.Enrollment{
		ID:        s.nextID,
		UserID:    userID,
		EventID:   eventID,
		CreatedAt: time.Now(),
	})
	return nil
}

// Get implements storage.Enrollments.
func (s *Enrollments) Get(_ context.Context, id int64) (*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

// Due implements storage.Enrollments.
func (s *Enrollments) Due(_ context.Context, eventID int64, tier storage.Tier) ([]storage.DueEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []storage.DueEnrollment
	for _, r := range s.rows {
		if r.EventID != eventID {
			continue
		}
		switch tier {
		case storage.Tier1:
			if r.Reminded1 {
				continue
			}
		case storage.Tier2:
			if r.Reminded2 || r.Coming == nil || !*r.Coming {
				continue
			}
		case storage.Tier3:
			if r.Reminded3 || r.Coming == nil || !*r.Coming {
				continue
			}
		default:
			return nil, errUnknownTier(int(tier))
		}
		d := storage.DueEnrollment{Enrollment: *r}
		if s.users != nil {
			s.users.mu.Lock()
			if u := s.users.byID(r.UserID); u != nil {
				d.TelegramID = u.TelegramID
			}
			s.users.mu.Unlock()
		}
		due = append(due, d)
	}
	return due, nil
}

// MarkReminded implements storage.Enrollments.
func (s *Enrollments) MarkReminded(_ context.Context, id int64, tier storage.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID != id {
			continue
		}
		switch tier {
		case storage.Tier1:
			r.Reminded1 = true
		case storage.Tier2:
			r.Reminded2 = true
		case storage.Tier3:
			r.Reminded3 = true
		default:
			return errUnknownTier(int(tier))
		}
		return nil
	}
	return nil
}

// SetComing implements storage.Enrollments.
func (s *Enrollments) SetComing(_ context.Context, id int64, coming bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == id {
			c := coming
			r.Coming = &c
			return true, nil
		}
	}
	return false, nil
}

// Count reports the number of enrollment rows, for test assertions.
func (s *Enrollments) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// NewStore bundles fresh in-memory stores.
func NewStore() storage.Store {
	users := NewUsers()
	return storage.Store{
		Users:       users,
		Settings:    NewSettings(),
		Admins:      NewAdmins(),
		Events:      NewEvents(),
		Enrollments: NewEnrollments(users),
	}
}
