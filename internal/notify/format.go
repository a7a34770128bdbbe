package notify

import (
	"fmt"
	"html"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	notProvided     = "Not provided"
	maxSupportChars = 500
)

var schoolZone = mustLoadZone("Europe/Tallinn")

func mustLoadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Format renders n as a Telegram HTML message stamped with at.
func Format(n Notification, at time.Time) string {
	local := at.In(schoolZone)
	stamp := local.Format("1/2/2006, 3:04:05 PM")

	var b strings.Builder
	switch n := n.(type) {
	case NewUser:
		b.WriteString("🆕 <b>New User Registered</b>\n\n")
		fmt.Fprintf(&b, "👤 <b>Name:</b> %s\n", orNotProvided(n.Name))
		fmt.Fprintf(&b, "📧 <b>Email:</b> %s\n", orNotProvided(n.Email))
		fmt.Fprintf(&b, "📱 <b>Phone:</b> %s\n", orNotProvided(n.Phone))
		fmt.Fprintf(&b, "😰 <b>Anxiety Level:</b> %s\n\n", anxietyLabel(n.AnxietyLevel))
		fmt.Fprintf(&b, "⏰ <b>Time:</b> %s", stamp)

	case WebsiteRegistration:
		b.WriteString("📝 <b>Registratsioon veebilehel</b>\n\n")
		fmt.Fprintf(&b, "👤 <b>Nimi:</b> %s\n", orNotProvided(n.Name))
		fmt.Fprintf(&b, "📧 <b>Email:</b> %s\n", orNotProvided(n.Email))
		fmt.Fprintf(&b, "📱 <b>Telefon:</b> %s\n\n", orNotProvided(n.Phone))
		fmt.Fprintf(&b, "⏰ <b>Aeg:</b> %s", local.Format("2.01.2006, 15:04:05"))

	case LessonBooking:
		emoji, label := "🚗", "Practice"
		if n.Type == LessonTheory {
			emoji, label = "📚", "Theory"
		}
		b.WriteString("📅 <b>New Lesson Booking</b>\n\n")
		fmt.Fprintf(&b, "👤 <b>Student:</b> %s\n", orNotProvided(n.UserName))
		fmt.Fprintf(&b, "📧 <b>Email:</b> %s\n", orNotProvided(n.UserEmail))
		fmt.Fprintf(&b, "👨‍🏫 <b>Instructor:</b> %s\n", html.EscapeString(n.InstructorName))
		fmt.Fprintf(&b, "%s <b>Type:</b> %s\n", emoji, label)
		fmt.Fprintf(&b, "📆 <b>Date:</b> %s\n", html.EscapeString(n.Date))
		fmt.Fprintf(&b, "🕐 <b>Time:</b> %s\n\n", html.EscapeString(n.Time))
		fmt.Fprintf(&b, "⏰ <b>Booked at:</b> %s", stamp)

	case SupportMessage:
		b.WriteString("💬 <b>New Support Request</b>\n\n")
		fmt.Fprintf(&b, "👤 <b>Student:</b> %s\n", orNotProvided(n.UserName))
		fmt.Fprintf(&b, "📧 <b>Email:</b> %s\n", orNotProvided(n.UserEmail))
		fmt.Fprintf(&b, "%s <b>Anxiety Level:</b> %s\n\n", anxietyEmoji(n.AnxietyLevel), anxietyLabel(n.AnxietyLevel))
		b.WriteString("💭 <b>Message:</b>\n")
		b.WriteString(html.EscapeString(truncate(n.MessageText, maxSupportChars)))
		fmt.Fprintf(&b, "\n\n⏰ <b>Sent at:</b> %s", stamp)

	default:
		panic(fmt.Sprintf("notify: unhandled notification %T", n))
	}
	return b.String()
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return notProvided
	}
	return html.EscapeString(s)
}

func anxietyLabel(level int) string {
	if level == 0 {
		return "Not set"
	}
	return fmt.Sprintf("%d/5", level)
}

func anxietyEmoji(level int) string {
	switch {
	case level == 0:
		return "⚪"
	case level >= 4:
		return "🔴"
	case level >= 3:
		return "🟡"
	default:
		return "🟢"
	}
}

// truncate cuts s to limit characters, counted in runes, and marks the cut.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
