// Package i18n holds the user-facing strings of the chat client.
//
// Strings live in an x/text catalog keyed by Key. English is the fallback;
// Turkish is the language of the original deployment.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a catalog entry.
type Key string

const (
	StatusAuthMissing        Key = "status.auth_missing"
	StatusInvalidCredential  Key = "status.invalid_credential"
	StatusRoomNotFound       Key = "status.room_not_found"
	StatusAccessDenied       Key = "status.access_denied"
	StatusSendForbidden      Key = "status.send_forbidden"
	StatusServerError        Key = "status.server_error"
	StatusConnectionClosed   Key = "status.connection_closed"
	StatusReconnecting       Key = "status.reconnecting"
	StatusReconnectExhausted Key = "status.reconnect_exhausted"
	StatusProcessingError    Key = "status.processing_error"
	StatusSendFailed         Key = "status.send_failed"

	NoticeJoined Key = "notice.joined"
	NoticeLeft   Key = "notice.left"

	TypingOne         Key = "typing.one"
	TypingMany        Key = "typing.many"
	ParticipantsCount Key = "participants.count"
	TimeJustNow       Key = "time.just_now"
	TimeOneMinute     Key = "time.one_minute"
	TimeMinutes       Key = "time.minutes"
	TimeOneHour       Key = "time.one_hour"
	TimeHours         Key = "time.hours"
	TimeYesterday     Key = "time.yesterday"
	TimeDays          Key = "time.days"
)

var entries = map[language.Tag]map[Key]string{
	language.English: {
		StatusAuthMissing:        "Session error: credential not found",
		StatusInvalidCredential:  "Session error: invalid credential",
		StatusRoomNotFound:       "Room not found",
		StatusAccessDenied:       "You do not have access to this room",
		StatusSendForbidden:      "You are not allowed to send messages in this room",
		StatusServerError:        "A server error occurred",
		StatusConnectionClosed:   "Connection closed.",
		StatusReconnecting:       "Reconnecting... (attempt %d/%d)",
		StatusReconnectExhausted: "Could not connect. Please reload.",
		StatusProcessingError:    "An error occurred while processing a message",
		StatusSendFailed:         "Message could not be sent",
		NoticeJoined:             "%s joined the room",
		NoticeLeft:               "%s left the room",
		TypingOne:                "%s is typing...",
		TypingMany:               "%s are typing...",
		ParticipantsCount:        "%d people",
		TimeJustNow:              "just now",
		TimeOneMinute:            "1 minute ago",
		TimeMinutes:              "%d minutes ago",
		TimeOneHour:              "1 hour ago",
		TimeHours:                "%d hours ago",
		TimeYesterday:            "yesterday",
		TimeDays:                 "%d days ago",
	},
	language.Turkish: {
		StatusAuthMissing:        "Oturum hatası: Token bulunamadı",
		StatusInvalidCredential:  "Oturum hatası: Geçersiz token",
		StatusRoomNotFound:       "Oda bulunamadı",
		StatusAccessDenied:       "Bu odaya erişim yetkiniz yok",
		StatusSendForbidden:      "Mesaj gönderme yetkiniz yok",
		StatusServerError:        "Sunucu hatası oluştu",
		StatusConnectionClosed:   "Bağlantı kapandı.",
		StatusReconnecting:       "Yeniden bağlanmaya çalışılıyor... (Deneme: %d/%d)",
		StatusReconnectExhausted: "Bağlantı kurulamadı. Lütfen sayfayı yenileyin.",
		StatusProcessingError:    "Mesaj işlenirken bir hata oluştu",
		StatusSendFailed:         "Mesaj gönderilemedi",
		NoticeJoined:             "%s odaya katıldı",
		NoticeLeft:               "%s odadan ayrıldı",
		TypingOne:                "%s yazıyor...",
		TypingMany:               "%s yazıyor...",
		ParticipantsCount:        "%d kişi",
		TimeJustNow:              "şimdi",
		TimeOneMinute:            "1 dakika önce",
		TimeMinutes:              "%d dakika önce",
		TimeOneHour:              "1 saat önce",
		TimeHours:                "%d saat önce",
		TimeYesterday:            "dün",
		TimeDays:                 "%d gün önce",
	},
}

var (
	supported = []language.Tag{language.English, language.Turkish}
	matcher   = language.NewMatcher(supported)
	cat       = mustBuildCatalog()
)

func mustBuildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range entries {
		for key, msg := range msgs {
			if err := b.SetString(tag, string(key), msg); err != nil {
				panic(fmt.Sprintf("i18n: failed to register %s/%s: %v", tag, key, err))
			}
		}
	}
	return b
}

// Translator formats catalog entries for one language.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Translator for the closest supported match of locale
// ("tr", "tr-TR", "en-GB", ...). Unknown or empty locales get English.
func New(locale string) *Translator {
	tag := language.English
	if locale != "" {
		if parsed, err := language.Parse(locale); err == nil {
			_, idx, _ := matcher.Match(parsed)
			tag = supported[idx]
		}
	}
	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(cat)),
	}
}

// Language returns the matched language.
func (t *Translator) Language() language.Tag {
	return t.tag
}

// T formats the entry for key with args.
func (t *Translator) T(key Key, args ...any) string {
	return t.printer.Sprintf(string(key), args...)
}
