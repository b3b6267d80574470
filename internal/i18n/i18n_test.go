package i18n

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestNew_MatchesLocale(t *testing.T) {
	assert.Equal(t, language.English, New("").Language())
	assert.Equal(t, language.English, New("not a locale!").Language())
	assert.Equal(t, language.Turkish, New("tr").Language())
	assert.Equal(t, language.Turkish, New("tr-TR").Language())
	assert.Equal(t, language.English, New("en-GB").Language())
}

func TestTranslator_T(t *testing.T) {
	en := New("en")
	tr := New("tr")

	assert.Equal(t, "Room not found", en.T(StatusRoomNotFound))
	assert.Equal(t, "Oda bulunamadı", tr.T(StatusRoomNotFound))
	assert.Equal(t, "Reconnecting... (attempt 2/5)", en.T(StatusReconnecting, 2, 5))
	assert.Equal(t, "alice joined the room", en.T(NoticeJoined, "alice"))
	assert.Equal(t, "alice odadan ayrıldı", tr.T(NoticeLeft, "alice"))
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)
	en := New("en")

	tests := []struct {
		ago  time.Duration
		want string
	}{
		{5 * time.Second, "just now"},
		{29 * time.Second, "just now"},
		{30 * time.Second, "1 minute ago"},
		{119 * time.Second, "1 minute ago"},
		{2 * time.Minute, "2 minutes ago"},
		{59 * time.Minute, "59 minutes ago"},
		{61 * time.Minute, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{25 * time.Hour, "yesterday"},
		{3 * 24 * time.Hour, "3 days ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, en.TimeAgo(now.Add(-tt.ago), now), tt.ago.String())
	}

	old := now.Add(-10 * 24 * time.Hour)
	assert.Equal(t, "10 March 12:00", en.TimeAgo(old, now))
	assert.Equal(t, "10 Mart 12:00", New("tr").TimeAgo(old, now))
	assert.Equal(t, "3 gün önce", New("tr").TimeAgo(now.Add(-3*24*time.Hour), now))
}
