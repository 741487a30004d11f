package service

// Ответы публичного API OKX. Свечи приходят массивами строк,
// новые первыми.
type candlesResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

type tickersResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID    string `json:"instId"`
		Last      string `json:"last"`
		Vol24h    string `json:"vol24h"`
		VolCcy24h string `json:"volCcy24h"`
	} `json:"data"`
}

// код лимитера OKX
const okxCodeRateLimit = "50011"
