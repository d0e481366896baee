package domain

type Account struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

type Wallet struct {
	Balance  float64   `json:"balance"`
	Currency string    `json:"currency"`
	Accounts []Account `json:"accounts"`
}
