package common

// Page names served by the refresher. Each maps to one or more backend reads.
const (
	PagePortfolio      = "portfolio"
	PageMarketIndices  = "market-indices"
	PagePreciousMetals = "precious-metals"
	PageSectors        = "sectors"
	PageMarket         = "market"
)

// AllPages lists every refreshable page in display order.
var AllPages = []string{
	PagePortfolio,
	PageMarketIndices,
	PagePreciousMetals,
	PageSectors,
	PageMarket,
}

// IsKnownPage reports whether name is a refreshable page.
func IsKnownPage(name string) bool {
	for _, p := range AllPages {
		if p == name {
			return true
		}
	}
	return false
}
