package domain

// Allocation binds a positive quantity of a product to a container.
type Allocation struct {
	Container ContainerRef
	ProductID int64
	Quantity  int
}

// AllocationView is the read model returned by the ledger.
type AllocationView struct {
	ContainerKind ContainerKind `json:"containerKind"`
	ContainerKey  string        `json:"containerId"`
	ProductID     int64         `json:"productId"`
	ProductName   string        `json:"productName"`
	Quantity      int           `json:"quantity"`
}

func NewAllocationView(a Allocation, productName string) AllocationView {
	return AllocationView{
		ContainerKind: a.Container.Kind,
		ContainerKey:  a.Container.Key,
		ProductID:     a.ProductID,
		ProductName:   productName,
		Quantity:      a.Quantity,
	}
}
