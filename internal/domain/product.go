package domain

// Product — авторитетная запись каталога.
// Витрина читает её для проверки корзины и списания остатков;
// управление каталогом находится вне этого сервиса.
type Product struct {
	ID       string
	Name     string
	Image    string
	Price    int64  // Цена в минимальных единицах валюты
	Currency string // ISO 4217

	// Active — товар доступен для показа и покупки.
	Active bool

	// Purchasable — товар продаётся напрямую.
	// false означает реферальную позицию: её нельзя положить в корзину.
	Purchasable bool

	// TrackStock — вести ли учёт остатков.
	// При false остаток не проверяется и не списывается.
	TrackStock bool
	Stock      int32
}

// AvailableFor проверяет, покрывает ли остаток запрошенное количество.
func (p *Product) AvailableFor(quantity int32) bool {
	if !p.TrackStock {
		return true
	}
	return p.Stock >= quantity
}
