package symbol

// aliases maps friendly names to canonical tickers. Lookup happens after
// normalization, so keys never contain spaces or punctuation.
var aliases = map[string]string{
	// US companies
	"APPLE":     "AAPL",
	"MICROSOFT": "MSFT",
	"GOOGLE":    "GOOGL",
	"ALPHABET":  "GOOGL",
	"AMAZON":    "AMZN",
	"TESLA":     "TSLA",
	"NIKE":      "NKE",
	"NETFLIX":   "NFLX",
	"NVIDIA":    "NVDA",
	"DISNEY":    "DIS",
	"COCACOLA":  "KO",
	"COCA-COLA": "KO",
	"VISA":      "V",
	"NUBANK":    "NU",

	// Brazilian companies
	"PETROBRAS": "PETR4",
	"VALE":      "VALE3",
	"ITAU":      "ITUB4",
	"BRADESCO":  "BBDC4",
	"AMBEV":     "ABEV3",
	"MAGALU":    "MGLU3",
	"WEG":       "WEGE3",
	"BANCODOBRASIL": "BBAS3",

	// Cryptocurrencies
	"BITCOIN":  "BTC",
	"ETHEREUM": "ETH",
	"SOLANA":   "SOL",
	"CARDANO":  "ADA",
	"DOGECOIN": "DOGE",
	"RIPPLE":   "XRP",
	"POLKADOT": "DOT",
	"LITECOIN": "LTC",
}

// cryptoIDs maps crypto tickers to CoinGecko coin ids. Membership in this
// table is what classifies a ticker as crypto.
var cryptoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"DOGE":  "dogecoin",
	"ADA":   "cardano",
	"AVAX":  "avalanche-2",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"LTC":   "litecoin",
	"ETC":   "ethereum-classic",
	"XLM":   "stellar",
	"ALGO":  "algorand",
	"NEAR":  "near",
	"ARB":   "arbitrum",
	"OP":    "optimism",
}

// usStocks is the known set of US-listed tickers, covering common stocks,
// ETFs, and BDR underlyings the engine is asked about. Anything outside
// this set that does not look like a B3 ticker classifies as unknown.
var usStocks = map[string]struct{}{
	"AAPL": {}, "MSFT": {}, "GOOGL": {}, "GOOG": {}, "AMZN": {},
	"TSLA": {}, "META": {}, "NVDA": {}, "NFLX": {}, "NKE": {},
	"KO": {}, "DIS": {}, "JPM": {}, "V": {}, "MA": {},
	"JNJ": {}, "WMT": {}, "PG": {}, "UNH": {}, "HD": {},
	"BAC": {}, "XOM": {}, "PFE": {}, "INTC": {}, "AMD": {},
	"CRM": {}, "ORCL": {}, "ABNB": {}, "UBER": {}, "PYPL": {},
	"NU": {}, "MELI": {}, "PBR": {}, "VALE": {}, "ITUB": {},
	"SPY": {}, "QQQ": {}, "VOO": {}, "VTI": {}, "IVV": {},
	"O": {}, "VNQ": {}, "SCHD": {},
}
