package enums

// ProductCondition grades the physical state of a jersey. Values are
// title case because they are shown to shoppers as is.
type ProductCondition string

const (
	ProductConditionMint      ProductCondition = "Mint"
	ProductConditionExcellent ProductCondition = "Excellent"
	ProductConditionGood      ProductCondition = "Good"
	ProductConditionFair      ProductCondition = "Fair"
)

var productConditions = set[ProductCondition]{
	ProductConditionMint,
	ProductConditionExcellent,
	ProductConditionGood,
	ProductConditionFair,
}

func (c ProductCondition) String() string { return string(c) }

func (c ProductCondition) IsValid() bool { return productConditions.has(c) }

func ParseProductCondition(raw string) (ProductCondition, error) {
	return productConditions.parse("product condition", raw)
}

// ProductSize is the size printed on the label.
type ProductSize string

const (
	ProductSizeXS  ProductSize = "XS"
	ProductSizeS   ProductSize = "S"
	ProductSizeM   ProductSize = "M"
	ProductSizeL   ProductSize = "L"
	ProductSizeXL  ProductSize = "XL"
	ProductSizeXXL ProductSize = "XXL"
)

var productSizes = set[ProductSize]{
	ProductSizeXS,
	ProductSizeS,
	ProductSizeM,
	ProductSizeL,
	ProductSizeXL,
	ProductSizeXXL,
}

func (s ProductSize) String() string { return string(s) }

func (s ProductSize) IsValid() bool { return productSizes.has(s) }

func ParseProductSize(raw string) (ProductSize, error) {
	return productSizes.parse("product size", raw)
}
