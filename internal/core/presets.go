package core

// Preset is a well known service offered as a starting point when adding a
// subscription.
type Preset struct {
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Price     float64  `json:"defaultPrice"`
	Currency  Currency `json:"currency"`
	CancelURL string   `json:"cancelUrl,omitempty"`
	TrialDays int      `json:"trialDays,omitempty"`
}

// Presets returns the built-in preset catalogue.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

var presets = []Preset{
	{Name: "넷플릭스", Category: CategoryStreaming, Price: 17000, Currency: KRW, CancelURL: "https://www.netflix.com/cancelplan"},
	{Name: "유튜브 프리미엄", Category: CategoryStreaming, Price: 14900, Currency: KRW, CancelURL: "https://www.youtube.com/paid_memberships", TrialDays: 30},
	{Name: "디즈니+", Category: CategoryStreaming, Price: 9900, Currency: KRW, CancelURL: "https://www.disneyplus.com/account/subscription"},
	{Name: "왓챠", Category: CategoryStreaming, Price: 12900, Currency: KRW, CancelURL: "https://watcha.com/settings/payment"},
	{Name: "웨이브", Category: CategoryStreaming, Price: 10900, Currency: KRW, CancelURL: "https://www.wavve.com/my/subscription"},
	{Name: "티빙", Category: CategoryStreaming, Price: 13900, Currency: KRW, CancelURL: "https://www.tving.com/my/membership"},
	{Name: "쿠팡플레이", Category: CategoryStreaming, Price: 4990, Currency: KRW, CancelURL: "https://www.coupang.com/np/coupangplay"},
	{Name: "멜론", Category: CategoryMusic, Price: 10900, Currency: KRW, CancelURL: "https://www.melon.com/mypay/main.htm"},
	{Name: "스포티파이", Category: CategoryMusic, Price: 10900, Currency: KRW, CancelURL: "https://www.spotify.com/account/subscription/", TrialDays: 30},
	{Name: "애플뮤직", Category: CategoryMusic, Price: 10900, Currency: KRW, CancelURL: "https://support.apple.com/ko-kr/HT202039", TrialDays: 30},
	{Name: "지니뮤직", Category: CategoryMusic, Price: 10900, Currency: KRW, CancelURL: "https://www.genie.co.kr/myInfo/payInfo"},
	{Name: "플로", Category: CategoryMusic, Price: 10900, Currency: KRW, CancelURL: "https://www.music-flo.com/my/ticket"},
	{Name: "노션", Category: CategoryProductivity, Price: 8, Currency: USD, CancelURL: "https://www.notion.so/my-account", TrialDays: 7},
	{Name: "ChatGPT Plus", Category: CategoryProductivity, Price: 20, Currency: USD, CancelURL: "https://chat.openai.com/settings/subscription"},
	{Name: "Claude Pro", Category: CategoryProductivity, Price: 20, Currency: USD, CancelURL: "https://claude.ai/settings"},
	{Name: "Figma", Category: CategoryProductivity, Price: 15, Currency: USD, CancelURL: "https://www.figma.com/settings", TrialDays: 14},
	{Name: "Adobe CC", Category: CategoryProductivity, Price: 59900, Currency: KRW, CancelURL: "https://account.adobe.com/plans", TrialDays: 7},
	{Name: "Microsoft 365", Category: CategoryProductivity, Price: 8900, Currency: KRW, CancelURL: "https://account.microsoft.com/services", TrialDays: 30},
	{Name: "Canva Pro", Category: CategoryProductivity, Price: 15000, Currency: KRW, CancelURL: "https://www.canva.com/settings/billing", TrialDays: 30},
	{Name: "GitHub Copilot", Category: CategoryProductivity, Price: 10, Currency: USD, CancelURL: "https://github.com/settings/copilot", TrialDays: 30},
	{Name: "Grammarly", Category: CategoryProductivity, Price: 12, Currency: USD, CancelURL: "https://www.grammarly.com/account/subscription", TrialDays: 7},
	{Name: "쿠팡 로켓와우", Category: CategoryShopping, Price: 4990, Currency: KRW, CancelURL: "https://www.coupang.com/np/rocketwow", TrialDays: 30},
	{Name: "네이버플러스 멤버십", Category: CategoryShopping, Price: 4900, Currency: KRW, CancelURL: "https://nid.naver.com/membership/my", TrialDays: 30},
	{Name: "아마존 프라임", Category: CategoryShopping, Price: 14.99, Currency: USD, CancelURL: "https://www.amazon.com/mc", TrialDays: 30},
	{Name: "마켓컬리 컬리패스", Category: CategoryShopping, Price: 4900, Currency: KRW, CancelURL: "https://www.kurly.com/mypage/membership"},
	{Name: "Xbox Game Pass", Category: CategoryGaming, Price: 14900, Currency: KRW, CancelURL: "https://account.microsoft.com/services/gamepass", TrialDays: 14},
	{Name: "PlayStation Plus", Category: CategoryGaming, Price: 14900, Currency: KRW, CancelURL: "https://www.playstation.com/ko-kr/playstation-plus/"},
	{Name: "Nintendo Switch Online", Category: CategoryGaming, Price: 4900, Currency: KRW, CancelURL: "https://accounts.nintendo.com/shop/subscriptions", TrialDays: 7},
	{Name: "Steam", Category: CategoryGaming, Price: 0, Currency: KRW},
	{Name: "iCloud+", Category: CategoryCloud, Price: 1100, Currency: KRW, CancelURL: "https://support.apple.com/ko-kr/HT207594"},
	{Name: "Google One", Category: CategoryCloud, Price: 2400, Currency: KRW, CancelURL: "https://one.google.com/settings"},
	{Name: "Dropbox", Category: CategoryCloud, Price: 11.99, Currency: USD, CancelURL: "https://www.dropbox.com/account/plans", TrialDays: 30},
	{Name: "OneDrive", Category: CategoryCloud, Price: 1900, Currency: KRW, CancelURL: "https://account.microsoft.com/services"},
	{Name: "애플 피트니스+", Category: CategoryFitness, Price: 11900, Currency: KRW, CancelURL: "https://support.apple.com/ko-kr/HT212680", TrialDays: 30},
	{Name: "나이키 런 클럽", Category: CategoryFitness, Price: 0, Currency: KRW},
	{Name: "캐시워크", Category: CategoryFitness, Price: 0, Currency: KRW},
	{Name: "뉴욕타임스", Category: CategoryNews, Price: 4, Currency: USD, CancelURL: "https://myaccount.nytimes.com/seg/subscription"},
	{Name: "조선일보 프리미엄", Category: CategoryNews, Price: 9900, Currency: KRW, CancelURL: "https://www.chosun.com/premium/"},
}
