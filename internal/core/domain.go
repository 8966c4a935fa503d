package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	KRW Currency = "KRW"
	USD Currency = "USD"
)

const (
	Monthly BillingCycle = "monthly"
	Weekly  BillingCycle = "weekly"
	Yearly  BillingCycle = "yearly"
)

const (
	CategoryStreaming    Category = "streaming"
	CategoryMusic        Category = "music"
	CategoryProductivity Category = "productivity"
	CategoryGaming       Category = "gaming"
	CategoryShopping     Category = "shopping"
	CategoryNews         Category = "news"
	CategoryFitness      Category = "fitness"
	CategoryCloud        Category = "cloud"
	CategoryOther        Category = "other"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// MaxNameLength bounds subscription display names.
const MaxNameLength = 100

type (
	Currency     string
	BillingCycle string
	Category     string

	Date struct {
		time.Time
	}

	// Subscription is one recurring charge tracked by a user.
	Subscription struct {
		ID           string       `json:"id"`
		UserID       string       `json:"userId"`
		Name         string       `json:"name"`
		Price        float64      `json:"price"`
		Currency     Currency     `json:"currency"`
		BillingCycle BillingCycle `json:"billingCycle"`
		BillingDay   int          `json:"billingDay"`
		Category     Category     `json:"category"`
		StartDate    Date         `json:"startDate"`
		IsActive     bool         `json:"isActive"`
		Memo         string       `json:"memo,omitempty"`
		LogoURL      string       `json:"logoUrl,omitempty"`
		CancelURL    string       `json:"cancelUrl,omitempty"`
		IsTrial      bool         `json:"isTrial"`
		TrialEndDate Date         `json:"trialEndDate"`
		IsShared     bool         `json:"isShared"`
		SharedWith   int          `json:"sharedWith,omitempty"`
		AutoRenewal  bool         `json:"autoRenewal"`
		Tags         []string     `json:"tags,omitempty"`
		DisplayOrder *int         `json:"displayOrder,omitempty"`
		CreatedAt    time.Time    `json:"createdAt"`
		UpdatedAt    time.Time    `json:"updatedAt"`
	}
)

var (
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidCurrency   = errors.New("invalid currency")
	ErrInvalidCycle      = errors.New("invalid billing cycle")
	ErrInvalidBillingDay = errors.New("invalid billing day")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidShare      = errors.New("invalid shared count")
	ErrInvalidDate       = errors.New("invalid date")
	ErrNotFound          = errors.New("not found")
)

var categoryLabels = map[Category]string{
	CategoryStreaming:    "스트리밍",
	CategoryMusic:        "음악",
	CategoryProductivity: "생산성",
	CategoryGaming:       "게임",
	CategoryShopping:     "쇼핑",
	CategoryNews:         "뉴스",
	CategoryFitness:      "피트니스",
	CategoryCloud:        "클라우드",
	CategoryOther:        "기타",
}

var cycleLabels = map[BillingCycle]string{
	Monthly: "월간",
	Weekly:  "주간",
	Yearly:  "연간",
}

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategoryStreaming, CategoryMusic, CategoryProductivity, CategoryGaming,
		CategoryShopping, CategoryNews, CategoryFitness, CategoryCloud, CategoryOther,
	}
}

func (c Currency) IsValid() bool {
	return c == KRW || c == USD
}

func (b BillingCycle) IsValid() bool {
	switch b {
	case Monthly, Weekly, Yearly:
		return true
	}
	return false
}

// Label returns the display label, falling back to the raw value.
func (b BillingCycle) Label() string {
	if l, ok := cycleLabels[b]; ok {
		return l
	}
	return string(b)
}

func (c Category) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the display label, falling back to the raw value.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" when zero.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Trialing reports whether the subscription is in a free trial. A trial
// flag without an end date does not count.
func (s Subscription) Trialing() bool {
	return s.IsTrial && !s.TrialEndDate.IsZero()
}

// MyShare is the per-person price of a shared subscription, rounded to a
// whole unit. Unshared subscriptions return the full price.
func (s Subscription) MyShare() float64 {
	if !s.IsShared || s.SharedWith < 1 {
		return s.Price
	}
	return math.Round(s.Price / float64(s.SharedWith))
}

// MarshalJSON adds the computed myShare to shared subscriptions.
func (s Subscription) MarshalJSON() ([]byte, error) {
	type plain Subscription
	out := struct {
		plain
		MyShare *float64 `json:"myShare,omitempty"`
	}{plain: plain(s)}
	if s.IsShared {
		share := s.MyShare()
		out.MyShare = &share
	}
	return json.Marshal(out)
}

func (s Subscription) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return ErrInvalidName
	}
	if len([]rune(name)) > MaxNameLength {
		return fmt.Errorf("%w: too long (max %d characters)", ErrInvalidName, MaxNameLength)
	}
	if s.Price < 0 || math.IsNaN(s.Price) || math.IsInf(s.Price, 0) {
		return ErrInvalidPrice
	}
	if !s.Currency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, s.Currency)
	}
	if !s.BillingCycle.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCycle, s.BillingCycle)
	}
	if s.BillingDay < 1 || s.BillingDay > 31 {
		return fmt.Errorf("%w: %d", ErrInvalidBillingDay, s.BillingDay)
	}
	if !s.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, s.Category)
	}
	if s.IsShared && s.SharedWith < 2 {
		return fmt.Errorf("%w: %d", ErrInvalidShare, s.SharedWith)
	}
	return nil
}
