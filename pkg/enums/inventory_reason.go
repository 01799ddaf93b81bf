package enums

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// ReasonKind separates engine-reserved reasons from operator supplied text.
type ReasonKind string

const (
	ReasonSale        ReasonKind = "sale"
	ReasonVoid        ReasonKind = "void"
	ReasonTransferOut ReasonKind = "transfer_out"
	ReasonTransferIn  ReasonKind = "transfer_in"
	ReasonAdjustment  ReasonKind = "adjustment"
	ReasonOther       ReasonKind = "other"
)

var systemReasonKinds = []ReasonKind{
	ReasonSale,
	ReasonVoid,
	ReasonTransferOut,
	ReasonTransferIn,
	ReasonAdjustment,
}

// reserved kinds may only be written by the engine itself.
var reservedReasonKinds = []ReasonKind{
	ReasonSale,
	ReasonVoid,
	ReasonTransferOut,
	ReasonTransferIn,
}

const maxReasonTextLen = 255

// InventoryReason is the reason recorded on an inventory log entry: either one
// of the system kinds or free text attached to ReasonOther.
type InventoryReason struct {
	Kind ReasonKind
	Text string
}

// SystemReason returns the reason for one of the system kinds.
func SystemReason(kind ReasonKind) InventoryReason {
	return InventoryReason{Kind: kind}
}

// ManualReason builds the reason for an operator adjustment. Empty text maps to
// ReasonAdjustment; engine-reserved kinds are rejected.
func ManualReason(text string) (InventoryReason, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.EqualFold(trimmed, string(ReasonAdjustment)) {
		return SystemReason(ReasonAdjustment), nil
	}
	if len(trimmed) > maxReasonTextLen {
		return InventoryReason{}, fmt.Errorf("reason exceeds %d characters", maxReasonTextLen)
	}
	for _, reserved := range reservedReasonKinds {
		if strings.EqualFold(trimmed, string(reserved)) {
			return InventoryReason{}, fmt.Errorf("reason %q is reserved", reserved)
		}
	}
	return InventoryReason{Kind: ReasonOther, Text: trimmed}, nil
}

// ParseInventoryReason converts a stored column value back into a reason.
func ParseInventoryReason(value string) InventoryReason {
	for _, kind := range systemReasonKinds {
		if string(kind) == value {
			return SystemReason(kind)
		}
	}
	return InventoryReason{Kind: ReasonOther, Text: value}
}

// IsSystem reports whether the reason is one of the engine's closed set.
func (r InventoryReason) IsSystem() bool {
	return r.Kind != ReasonOther && r.Kind != ""
}

// String returns the stored representation.
func (r InventoryReason) String() string {
	if r.Kind == ReasonOther {
		return r.Text
	}
	return string(r.Kind)
}

// Value implements driver.Valuer.
func (r InventoryReason) Value() (driver.Value, error) {
	if r.Kind == "" || (r.Kind == ReasonOther && r.Text == "") {
		return nil, fmt.Errorf("inventory reason is empty")
	}
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *InventoryReason) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*r = ParseInventoryReason(v)
	case []byte:
		*r = ParseInventoryReason(string(v))
	case nil:
		*r = InventoryReason{}
	default:
		return fmt.Errorf("unsupported inventory reason type %T", src)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r InventoryReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
