package models

// HTTP request shapes for the engine API.

type ValueRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type ResolutionsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

type TrendRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Short  int    `query:"short" json:"short" default:"5" validate:"gte=2,lte=500"`
	Long   int    `query:"long" json:"long" default:"20" validate:"gte=2,lte=5000"`
}

type AnomalyRequest struct {
	Symbol    string  `query:"symbol" json:"symbol" validate:"required"`
	Threshold float64 `query:"threshold" json:"threshold" default:"3" validate:"gt=0,lte=10"`
}

type VolatilityRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Window int    `query:"window" json:"window" default:"10" validate:"gte=2,lte=1000"`
}

type GraphInsightsRequest struct {
	TopN      int     `query:"top_n" json:"top_n" default:"10" validate:"gte=1,lte=100"`
	Threshold float64 `query:"threshold" json:"threshold" default:"0.1" validate:"gte=0"`
}

type ProcessWindowRequest struct {
	Span  string `query:"span" json:"span" default:"1m"`
	Async bool   `query:"async" json:"async"`
}

type RegisterItemRequest struct {
	Symbol   string `json:"symbol" validate:"required,min=1,max=32"`
	Category string `json:"category" default:"other" validate:"oneof=currency crypto commodity equity index base_unit other"`
}
