package bot

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tadbirbot/internal/logger"
)

// User-facing texts. Prompt texts of the registration flow live in the
// settings row; everything fixed is here.
const (
	// ResetCommand restarts the conversation for any sender.
	ResetCommand = "/start"

	textOnlyText = "Iltimos, faqat matn yuboring. Boshlash uchun /start yuboring."

	alreadyRegisteredText = "Siz allaqachon roʻyxatdan oʻtgansiz. Qayta boshlash uchun /start yuboring."

	unknownStepText = "Boshlash uchun /start buyrugʻini yuboring."

	qrCaptionPrefix = "QR matni:\n"

	broadcastConfirmText  = "Ushbu xabarni barcha foydalanuvchilarga yuborishni tasdiqlaysizmi?"
	broadcastYesLabel     = "✅ Ha, yuborilsin"
	broadcastNoLabel      = "❌ Yoʻq, bekor qilinsin"
	broadcastEmptyText    = "Yuborish uchun xabar yoʻq."
	broadcastCancelText   = "Yuborish bekor qilindi."
	broadcastDoneTextFmt  = "Xabar %d ta foydalanuvchiga yuborildi."
	notAdminText          = "Bu amal faqat adminlar uchun."
	rsvpYesText           = "Kelishingiz qayd etildi. Rahmat!"
	rsvpNoText            = "Javobingiz qayd etildi. Kela olmasligingiz uchun afsusdamiz."
	rsvpNotFoundText      = "Soʻrov topilmadi yoki eskirgan."
	rsvpYesButtonLabel    = "Kelaman"
	rsvpNoButtonLabel     = "Kela olmayman"
	adminUsageAddText     = "Foydalanish: /addadmin <raqamli ID>"
	adminUsageRemoveText  = "Foydalanish: /removeadmin <raqamli ID>"
	adminNotNumericText   = "ID raqam boʻlishi kerak."
	adminAddedTextFmt     = "Admin qoʻshildi: %d"
	adminExistsTextFmt    = "%d allaqachon admin."
	adminRemovedTextFmt   = "Admin olib tashlandi: %d"
	adminAbsentTextFmt    = "%d adminlar roʻyxatida yoʻq."
	adminSelfRemoveText   = "Oʻzingizni olib tashlay olmaysiz."
	myIDTextFmt           = "Sizning ID: %d"
	myIDUsernameTextFmt   = "Sizning ID: %d (@%s)"
	adminListHeader       = "Adminlar:"
	adminListBootstrapFmt = "%d (bootstrap)"
)

const apologyMsgLimit = 120

// apologyText builds the generic failure reply with a short technical
// tail, matching the bot's historical behavior.
func apologyText(err error) string {
	code := "NO_CODE"
	msg := "NO_MESSAGE"
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code != "" {
			code = string(pqErr.Code)
		}
		msg = logger.SanitizeLimit(logger.RedactToken(err.Error()), apologyMsgLimit)
	}
	return fmt.Sprintf(
		"Serverda xatolik yuz berdi 😔 Iltimos, birozdan soʻng qayta urinib koʻring.\n\nTech info: %s | %s",
		code, msg,
	)
}
