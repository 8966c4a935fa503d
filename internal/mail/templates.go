// Package mail renders notification emails and delivers them through Resend.
package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"mysubs/internal/core"
	"mysubs/web"
)

// Email is a rendered message ready to send.
type Email struct {
	Subject string
	HTML    string
}

type (
	BillingItem struct {
		Name       string        `json:"name"`
		Price      float64       `json:"price"`
		Currency   core.Currency `json:"currency"`
		BillingDay int           `json:"billingDay"`
		DaysUntil  int           `json:"daysUntil"`
	}

	BillingReminder struct {
		UserName     string        `json:"userName"`
		DashboardURL string        `json:"dashboardUrl,omitempty"`
		Items        []BillingItem `json:"items"`
	}

	TrialEnding struct {
		UserName         string            `json:"userName"`
		DashboardURL     string            `json:"dashboardUrl,omitempty"`
		SubscriptionName string            `json:"subscriptionName"`
		TrialEndDate     string            `json:"trialEndDate"`
		DaysLeft         int               `json:"daysLeft"`
		Price            float64           `json:"price"`
		Currency         core.Currency     `json:"currency"`
		Cycle            core.BillingCycle `json:"cycle"`
		CancelURL        string            `json:"cancelUrl,omitempty"`
	}

	MonthlyReport struct {
		UserName          string                `json:"userName"`
		DashboardURL      string                `json:"dashboardUrl,omitempty"`
		Month             string                `json:"month"`
		TotalKRW          float64               `json:"totalKrw"`
		TotalUSD          float64               `json:"totalUsd"`
		SubscriptionCount int                   `json:"subscriptionCount"`
		Categories        []core.CategoryAmount `json:"categories"`
		UpcomingTotal     float64               `json:"upcomingTotal"`
	}
)

// TotalText sums the items per currency, e.g. "₩17,000 + $8.00".
func (b BillingReminder) TotalText() string {
	var krw, usd float64
	for _, it := range b.Items {
		if it.Currency == core.USD {
			usd += it.Price
		} else {
			krw += it.Price
		}
	}
	return joinTotals(krw, usd)
}

func (t TrialEnding) CycleLabel() string {
	switch t.Cycle {
	case core.Weekly:
		return "주"
	case core.Yearly:
		return "년"
	}
	return "월"
}

func (m MonthlyReport) TotalText() string {
	return joinTotals(m.TotalKRW, m.TotalUSD)
}

func joinTotals(krw, usd float64) string {
	var parts []string
	if krw > 0 || usd == 0 {
		parts = append(parts, core.FormatAmount(core.RoundAmount(krw), core.KRW))
	}
	if usd > 0 {
		parts = append(parts, core.FormatAmount(usd, core.USD))
	}
	return strings.Join(parts, " + ")
}

var funcs = template.FuncMap{
	"amount": core.FormatAmount,
	"won": func(v float64) string {
		return core.FormatAmount(core.RoundAmount(v), core.KRW)
	},
	"due": DueText,
}

// DueText phrases the distance to a charge.
func DueText(days int) string {
	switch days {
	case 0:
		return "오늘 결제"
	case 1:
		return "내일 결제"
	}
	return fmt.Sprintf("%d일 후 결제", days)
}

type Renderer struct {
	tmpl         *template.Template
	dashboardURL string
}

// NewRenderer parses the embedded templates. Links point at appURL/dashboard.
func NewRenderer(appURL string) (*Renderer, error) {
	t, err := template.New("mail").Funcs(funcs).ParseFS(web.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{tmpl: t, dashboardURL: strings.TrimRight(appURL, "/") + "/dashboard"}, nil
}

// Render builds the email of the given kind. data must be the matching
// BillingReminder, TrialEnding or MonthlyReport value.
func (r *Renderer) Render(kind core.NotificationKind, data any) (Email, error) {
	var subject string
	switch d := data.(type) {
	case BillingReminder:
		if kind != core.NotifyBillingReminder {
			return Email{}, fmt.Errorf("render %s: unexpected payload %T", kind, data)
		}
		if d.DashboardURL == "" {
			d.DashboardURL = r.dashboardURL
		}
		data = d
		subject = fmt.Sprintf("[MySubs] %d개 구독 결제 예정 알림", len(d.Items))
	case TrialEnding:
		if kind != core.NotifyTrialEnding {
			return Email{}, fmt.Errorf("render %s: unexpected payload %T", kind, data)
		}
		if d.DashboardURL == "" {
			d.DashboardURL = r.dashboardURL
		}
		data = d
		subject = fmt.Sprintf("[MySubs] %s 무료 체험이 %d일 후 종료됩니다", d.SubscriptionName, d.DaysLeft)
	case MonthlyReport:
		if kind != core.NotifyMonthlyReport {
			return Email{}, fmt.Errorf("render %s: unexpected payload %T", kind, data)
		}
		if d.DashboardURL == "" {
			d.DashboardURL = r.dashboardURL
		}
		data = d
		subject = fmt.Sprintf("[MySubs] %s 구독 리포트", d.Month)
	default:
		return Email{}, fmt.Errorf("render %s: unsupported payload %T", kind, data)
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, string(kind), data); err != nil {
		return Email{}, fmt.Errorf("render %s: %w", kind, err)
	}
	return Email{Subject: subject, HTML: buf.String()}, nil
}

// DecodePayload turns a queued JSON payload back into the typed data Render expects.
func DecodePayload(kind core.NotificationKind, raw []byte) (any, error) {
	switch kind {
	case core.NotifyBillingReminder:
		return decode[BillingReminder](kind, raw)
	case core.NotifyTrialEnding:
		return decode[TrialEnding](kind, raw)
	case core.NotifyMonthlyReport:
		return decode[MonthlyReport](kind, raw)
	}
	return nil, fmt.Errorf("unknown notification kind %q", kind)
}

func decode[T any](kind core.NotificationKind, raw []byte) (any, error) {
	var d T
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return d, nil
}
