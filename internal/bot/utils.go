package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode"

	"autokool/internal/checkout"
	"autokool/internal/storage"
)

const estoniaPrefix = "+372"

// NormalizePhoneNumber strips formatting and adds the country code. Local
// Estonian numbers have seven or eight digits.
func NormalizePhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	switch {
	case strings.HasPrefix(phone, "+"):
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "00") && len(cleaned) > 2:
		return "+" + cleaned[2:]
	case strings.HasPrefix(cleaned, "372") && len(cleaned) >= 10:
		return "+" + cleaned
	case len(cleaned) == 7 || len(cleaned) == 8:
		return estoniaPrefix + cleaned
	}
	return cleaned
}

var badNumbers = map[string]bool{
	"0000000000": true,
	"1111111111": true,
	"1234567890": true,
	"9999999999": true,
	"0123456789": true,
}

// IsValidPhoneNumber expects a normalized number: "+" then 10 to 15 digits.
func IsValidPhoneNumber(phone string) bool {
	digits, ok := strings.CutPrefix(phone, "+")
	if !ok || len(digits) < 10 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return !badNumbers[digits]
}

func FormatQuote(q checkout.Quote) string {
	var sb strings.Builder

	// the first line names the course
	fmt.Fprintf(&sb, "<b>%s</b>\n\n", html.EscapeString(q.Lines[0].Name))
	for _, line := range q.Lines[1:] {
		if line.Price == "" {
			fmt.Fprintf(&sb, "• %s\n", html.EscapeString(line.Name))
			continue
		}
		fmt.Fprintf(&sb, "• %s: %s\n", html.EscapeString(line.Name), line.Price)
	}
	fmt.Fprintf(&sb, "\n💰 Total: <b>%s</b>", q.Label)
	return sb.String()
}

func FormatOrderAnnouncement(order storage.Order) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📦 <b>New order #%d</b>\n\n", order.ID)
	fmt.Fprintf(&sb, "Course: %s\n", html.EscapeString(order.Category))
	if order.Category == checkout.CategoryB.String() {
		fmt.Fprintf(&sb, "Transmission: %s\n", html.EscapeString(order.Transmission))
	}
	fmt.Fprintf(&sb, "Price: %d€\n", order.Price)
	fmt.Fprintf(&sb, "Paid: %.2f %s\n", float64(order.Amount)/100, strings.ToUpper(order.Currency))
	sb.WriteString("──────────────────\n")
	fmt.Fprintf(&sb, "Customer: %s\n", orDash(order.CustomerName()))
	fmt.Fprintf(&sb, "Phone: %s\n", orDash(order.Phone))
	fmt.Fprintf(&sb, "Email: %s\n", orDash(order.Email))
	if order.GiftEmail != "" {
		fmt.Fprintf(&sb, "🎁 Gift for: %s\n", html.EscapeString(order.GiftEmail))
	}
	if order.Instructor != "" {
		fmt.Fprintf(&sb, "Instructor: %s\n", html.EscapeString(order.Instructor))
	}
	fmt.Fprintf(&sb, "Payment: <code>%s</code>", html.EscapeString(order.PaymentID))
	return sb.String()
}

func FormatStats(stats *storage.OrderStatistics) string {
	var sb strings.Builder

	sb.WriteString("📊 <b>Order statistics</b>\n\n")
	fmt.Fprintf(&sb, "📌 Total orders: %d\n", stats.TotalOrders)
	fmt.Fprintf(&sb, "💰 Total revenue: %d€\n", stats.TotalRevenue)
	fmt.Fprintf(&sb, "📅 Today: %d (%d€)\n", stats.TodayOrders, stats.TodayRevenue)
	fmt.Fprintf(&sb, "📅 This week: %d (%d€)\n", stats.WeekOrders, stats.WeekRevenue)
	fmt.Fprintf(&sb, "📅 This month: %d (%d€)", stats.MonthOrders, stats.MonthRevenue)

	if len(stats.CategoryCounts) == 0 {
		return sb.String()
	}

	categories := make([]string, 0, len(stats.CategoryCounts))
	for c := range stats.CategoryCounts {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	sb.WriteString("\n\n📌 By course:")
	for _, c := range categories {
		fmt.Fprintf(&sb, "\n%s: %d", html.EscapeString(c), stats.CategoryCounts[c])
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return html.EscapeString(s)
}
