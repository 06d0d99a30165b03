package asset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("asset: validation failed")
	// ErrInvalidTransition marks a command that is not valid from the
	// entity's current state.
	ErrInvalidTransition = errors.New("asset: invalid state transition")
	// ErrRetired marks a mutation attempt on a retired asset.
	ErrRetired = errors.New("asset: asset is retired")
	// ErrAlreadyAllocated marks an allocation attempt while an active
	// allocation exists.
	ErrAlreadyAllocated = errors.New("asset: already allocated")
	// ErrDisposalPending marks a second disposal attempt while one is open.
	ErrDisposalPending = errors.New("asset: disposal already pending")
)

// Status is the authoritative lifecycle state of an asset. It changes only
// through the transition methods in this package; workflow records are
// satellite history, never an alternate source of truth.
type Status string

const (
	StatusActive           Status = "active"
	StatusAllocated        Status = "allocated"
	StatusUnderMaintenance Status = "under_maintenance"
	StatusPendingDisposal  Status = "pending_disposal"
	StatusRetired          Status = "retired"
)

// Category classifies the asset register entry.
type Category string

const (
	CategoryITEquipment    Category = "it_equipment"
	CategoryFurniture      Category = "furniture"
	CategoryTransport      Category = "transport"
	CategoryInfrastructure Category = "infrastructure"
	CategoryRealEstate     Category = "real_estate"
)

var categories = map[Category]struct{}{
	CategoryITEquipment:    {},
	CategoryFurniture:      {},
	CategoryTransport:      {},
	CategoryInfrastructure: {},
	CategoryRealEstate:     {},
}

// Method selects the depreciation algorithm.
type Method string

const (
	StraightLine           Method = "straight_line"
	WrittenDownValue       Method = "written_down_value"
	DoubleDecliningBalance Method = "double_declining_balance"
)

var methods = map[Method]struct{}{
	StraightLine:           {},
	WrittenDownValue:       {},
	DoubleDecliningBalance: {},
}

// Asset is the registered item. Monetary fields are minor units (e.g.
// cents). No floats. CurrentBookValue is derived and cached: it is always
// recomputed by the valuation engine, never hand-edited.
type Asset struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Status   Status   `json:"status"`

	// Resume markers remember where to return after a temporary excursion.
	// MaintenanceResume holds the pre-maintenance status while the asset is
	// under maintenance; DisposalResume holds the pre-disposal status while
	// a disposal request is open.
	MaintenanceResume Status `json:"maintenance_resume,omitempty"`
	DisposalResume    Status `json:"disposal_resume,omitempty"`

	PurchaseCost     int64     `json:"purchase_cost"`
	SalvageValue     int64     `json:"salvage_value"`
	PurchaseDate     time.Time `json:"purchase_date"`
	UsefulLifeMonths int       `json:"useful_life_months"`
	Method           Method    `json:"depreciation_method"`
	CurrentBookValue int64     `json:"current_book_value"`

	Location   string `json:"location,omitempty"`
	Department string `json:"department,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`

	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinancialBasis bundles the fields whose change forces a valuation
// recompute.
type FinancialBasis struct {
	PurchaseCost     int64     `json:"purchase_cost"`
	SalvageValue     int64     `json:"salvage_value"`
	PurchaseDate     time.Time `json:"purchase_date"`
	UsefulLifeMonths int       `json:"useful_life_months"`
	Method           Method    `json:"depreciation_method"`
}

// Validate checks the invariants of the basis: cost >= 0, 0 <= salvage <=
// cost, positive useful life, known method.
func (b FinancialBasis) Validate() error {
	if b.PurchaseCost < 0 {
		return fmt.Errorf("%w: purchase_cost must be >= 0", ErrValidation)
	}
	if b.SalvageValue < 0 {
		return fmt.Errorf("%w: salvage_value must be >= 0", ErrValidation)
	}
	if b.SalvageValue > b.PurchaseCost {
		return fmt.Errorf("%w: salvage_value exceeds purchase_cost", ErrValidation)
	}
	if b.UsefulLifeMonths <= 0 {
		return fmt.Errorf("%w: useful_life_months must be > 0", ErrValidation)
	}
	if b.PurchaseDate.IsZero() {
		return fmt.Errorf("%w: purchase_date is required", ErrValidation)
	}
	if _, ok := methods[b.Method]; !ok {
		return fmt.Errorf("%w: unknown depreciation method %q", ErrValidation, b.Method)
	}
	return nil
}

// Basis returns the asset's current financial basis.
func (a Asset) Basis() FinancialBasis {
	return FinancialBasis{
		PurchaseCost:     a.PurchaseCost,
		SalvageValue:     a.SalvageValue,
		PurchaseDate:     a.PurchaseDate,
		UsefulLifeMonths: a.UsefulLifeMonths,
		Method:           a.Method,
	}
}

// ParseCategory normalizes raw input into a known category.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("%w: unknown category %q", ErrValidation, raw)
	}
	return c, nil
}

// ParseMethod normalizes raw input into a known depreciation method.
func ParseMethod(raw string) (Method, error) {
	m := Method(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := methods[m]; !ok {
		return "", fmt.Errorf("%w: unknown depreciation method %q", ErrValidation, raw)
	}
	return m, nil
}
