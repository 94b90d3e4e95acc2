package catalog

import "brettonwoods/internal/domain"

// Delegations seated at the 1944 conference
var delegations = []domain.Country{
	{Code: "USA", Name: "United States", Emblem: "🇺🇸", Color: "#3C3B6E"},
	{Code: "GBR", Name: "United Kingdom", Emblem: "🇬🇧", Color: "#C8102E"},
	{Code: "SUN", Name: "Soviet Union", Emblem: "☭", Color: "#CC0000"},
	{Code: "CHN", Name: "Republic of China", Emblem: "🇹🇼", Color: "#000095"},
	{Code: "FRA", Name: "France", Emblem: "🇫🇷", Color: "#0055A4"},
	{Code: "IND", Name: "India", Emblem: "🇮🇳", Color: "#FF9933"},
	{Code: "BRA", Name: "Brazil", Emblem: "🇧🇷", Color: "#009C3B"},
	{Code: "CAN", Name: "Canada", Emblem: "🇨🇦", Color: "#D80621"},
}

// Agenda in play order
var agenda = []domain.Issue{
	{
		ID:    "reserve-currency",
		Title: "The Reserve Currency",
		Description: "Which asset should anchor international settlements " +
			"once the war ends?",
		HistoricalContext: "Keynes proposed a supranational unit, the bancor, " +
			"while White insisted the dollar, convertible to gold at $35 an ounce, " +
			"take that role.",
		Options: []domain.Option{
			{
				ID: "reserve-a", Letter: "A",
				Text:    "Peg every currency to the US dollar, itself convertible to gold",
				Favors:  []string{"USA", "CAN"},
				Opposes: []string{"GBR", "FRA"},
			},
			{
				ID: "reserve-b", Letter: "B",
				Text:    "Create the bancor, a new unit issued by an international clearing union",
				Favors:  []string{"GBR", "IND"},
				Opposes: []string{"USA"},
			},
			{
				ID: "reserve-c", Letter: "C",
				Text:    "Return to a classical gold standard without a key currency",
				Favors:  []string{"FRA", "SUN"},
				Opposes: []string{"GBR", "BRA"},
			},
		},
	},
	{
		ID:    "imf-quotas",
		Title: "Fund Quotas and Voting Power",
		Description: "How should subscriptions to the International Monetary Fund, " +
			"and therefore votes, be allotted?",
		HistoricalContext: "Quotas were set with a formula weighted toward national " +
			"income and trade, giving the United States a decisive share.",
		Options: []domain.Option{
			{
				ID: "quotas-a", Letter: "A",
				Text:    "Weight quotas by national income and gold holdings",
				Favors:  []string{"USA", "GBR"},
				Opposes: []string{"IND", "CHN"},
			},
			{
				ID: "quotas-b", Letter: "B",
				Text:    "Weight quotas by population and prewar trade",
				Favors:  []string{"IND", "CHN", "SUN"},
				Opposes: []string{"CAN"},
			},
			{
				ID: "quotas-c", Letter: "C",
				Text:    "Give every member an equal basic vote plus a small quota share",
				Favors:  []string{"BRA", "FRA"},
				Opposes: []string{"USA"},
			},
		},
	},
	{
		ID:    "exchange-rates",
		Title: "Exchange Rate Regime",
		Description: "How flexible should par values be after they are declared " +
			"to the Fund?",
		HistoricalContext: "The agreement settled on adjustable pegs: parities could " +
			"move to correct a fundamental disequilibrium.",
		Options: []domain.Option{
			{
				ID: "rates-a", Letter: "A",
				Text:    "Fixed parities that may only change with Fund approval",
				Favors:  []string{"USA", "CAN"},
				Opposes: []string{"BRA"},
			},
			{
				ID: "rates-b", Letter: "B",
				Text:    "Adjustable pegs members may move up to 10% on their own",
				Favors:  []string{"GBR", "FRA", "BRA"},
				Opposes: []string{},
			},
			{
				ID: "rates-c", Letter: "C",
				Text:    "Floating rates with no declared parity",
				Favors:  []string{"SUN"},
				Opposes: []string{"USA", "GBR", "FRA"},
			},
		},
	},
	{
		ID:    "capital-controls",
		Title: "Capital Controls",
		Description: "May members restrict the movement of capital across " +
			"their borders?",
		HistoricalContext: "Both Keynes and White saw hot money as a cause of the " +
			"interwar collapse, and controls on capital accounts were explicitly permitted.",
		Options: []domain.Option{
			{
				ID: "controls-a", Letter: "A",
				Text:    "Permit controls on capital while keeping current accounts open",
				Favors:  []string{"GBR", "IND", "FRA"},
				Opposes: []string{},
			},
			{
				ID: "controls-b", Letter: "B",
				Text:    "Require free movement of capital among all members",
				Favors:  []string{"USA"},
				Opposes: []string{"GBR", "IND", "CHN"},
			},
			{
				ID: "controls-c", Letter: "C",
				Text:    "Leave capital policy entirely to national governments",
				Favors:  []string{"SUN", "CHN"},
				Opposes: []string{"CAN"},
			},
		},
	},
	{
		ID:    "world-bank",
		Title: "Priorities of the World Bank",
		Description: "What should the International Bank for Reconstruction and " +
			"Development lend for first?",
		HistoricalContext: "Europe's reconstruction dominated the early lending, " +
			"while Latin American and Asian delegations pressed for development.",
		Options: []domain.Option{
			{
				ID: "bank-a", Letter: "A",
				Text:    "Rebuild war-damaged Europe before anything else",
				Favors:  []string{"FRA", "GBR", "SUN"},
				Opposes: []string{"BRA", "IND"},
			},
			{
				ID: "bank-b", Letter: "B",
				Text:    "Balance reconstruction with development of poorer members",
				Favors:  []string{"BRA", "IND", "CHN"},
				Opposes: []string{},
			},
			{
				ID: "bank-c", Letter: "C",
				Text:    "Lend only against private guarantees at market rates",
				Favors:  []string{"USA", "CAN"},
				Opposes: []string{"FRA", "CHN"},
			},
		},
	},
}

// Default returns the built-in Bretton Woods catalog
func Default() *Catalog {
	c, err := New(delegations, agenda)
	if err != nil {
		panic("catalog: invalid built-in data: " + err.Error())
	}
	return c
}
