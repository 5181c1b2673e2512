package checkout

import (
	"fmt"

	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
)

const (
	ReasonInvalidCustomer     pkgerrors.Reason = "INVALID_CUSTOMER"
	ReasonInvalidPhone        pkgerrors.Reason = "INVALID_PHONE"
	ReasonEmptyCart           pkgerrors.Reason = "EMPTY_CART"
	ReasonInvalidQuantity     pkgerrors.Reason = "INVALID_QUANTITY"
	ReasonVariantNotFound     pkgerrors.Reason = "VARIANT_NOT_FOUND"
	ReasonInsufficientStock   pkgerrors.Reason = "INSUFFICIENT_STOCK"
	ReasonVariantFetch        pkgerrors.Reason = "VARIANT_FETCH_FAILED"
	ReasonProductFetch        pkgerrors.Reason = "PRODUCT_FETCH_FAILED"
	ReasonOrderCreate         pkgerrors.Reason = "ORDER_CREATE_FAILED"
	ReasonOrderItemsPersist   pkgerrors.Reason = "ORDER_ITEMS_PERSIST_FAILED"
	ReasonStockDecrement      pkgerrors.Reason = "STOCK_DECREMENT_FAILED"
	ReasonInvalidCustomerAddr pkgerrors.Reason = "INVALID_ADDRESS"
)

const (
	msgInvalidCustomer = "Nama pelanggan tidak valid (min 2 karakter)"
	msgInvalidPhone    = "Nomor telepon tidak valid"
	msgEmptyCart       = "Keranjang belanja kosong"
	msgInvalidAddress  = "Alamat terlalu panjang (maks 500 karakter)"
)

// StockShortage describes the variant a checkout could not reserve.
type StockShortage struct {
	Product   string `json:"product"`
	Variant   string `json:"variant"`
	Remaining int    `json:"remaining"`
}

func ErrInvalidCustomer() error {
	return pkgerrors.New(pkgerrors.CodeValidation, msgInvalidCustomer).WithReason(ReasonInvalidCustomer)
}

func ErrInvalidPhone() error {
	return pkgerrors.New(pkgerrors.CodeValidation, msgInvalidPhone).WithReason(ReasonInvalidPhone)
}

func ErrInvalidAddress() error {
	return pkgerrors.New(pkgerrors.CodeValidation, msgInvalidAddress).WithReason(ReasonInvalidCustomerAddr)
}

func ErrEmptyCart() error {
	return pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart).WithReason(ReasonEmptyCart)
}

// ErrInvalidQuantity names the product (or line label) whose quantity is out of range.
func ErrInvalidQuantity(product string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Jumlah tidak valid untuk %s", product)).
		WithReason(ReasonInvalidQuantity).
		WithDetails(map[string]any{"product": product, "min": MinQuantity, "max": MaxQuantity})
}

func ErrVariantNotFound(variantID string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Varian tidak ditemukan: %s", variantID)).
		WithReason(ReasonVariantNotFound).
		WithDetails(map[string]any{"variant_id": variantID})
}

func ErrInsufficientStock(product, variant string, remaining int) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("Stok %s (%s) tidak mencukupi. Tersisa: %d", product, variant, remaining)).
		WithReason(ReasonInsufficientStock).
		WithDetails(StockShortage{Product: product, Variant: variant, Remaining: remaining})
}

func ErrVariantFetch(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Gagal mengambil data varian").WithReason(ReasonVariantFetch)
}

func ErrProductFetch(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Gagal mengambil data produk").WithReason(ReasonProductFetch)
}

func ErrOrderCreate(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Gagal membuat pesanan").WithReason(ReasonOrderCreate)
}

func ErrOrderItemsPersist(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Gagal menyimpan item pesanan").WithReason(ReasonOrderItemsPersist)
}

func ErrStockDecrement(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Gagal memperbarui stok").WithReason(ReasonStockDecrement)
}
