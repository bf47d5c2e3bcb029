package ui

import "procurement/internal/model"

// Color is the closed set of badge colors the views use.
type Color int

const (
	ColorGray Color = iota
	ColorRed
	ColorYellow
	ColorBlue
	ColorPurple
	ColorGreen
)

var colorNames = [...]string{"gray", "red", "yellow", "blue", "purple", "green"}

func (c Color) String() string {
	if c < 0 || int(c) >= len(colorNames) {
		return colorNames[ColorGray]
	}
	return colorNames[c]
}

var (
	riskColors = map[model.RiskLevel]Color{
		model.RiskHigh:   ColorRed,
		model.RiskMedium: ColorYellow,
		model.RiskLow:    ColorBlue,
	}
	typeColors = map[model.RequestType]Color{
		model.RequestTypeRequisition:   ColorPurple,
		model.RequestTypePurchaseOrder: ColorYellow,
		model.RequestTypePayment:       ColorBlue,
	}
	statusColors = map[model.ApprovalStatus]Color{
		model.StatusPending:  ColorYellow,
		model.StatusApproved: ColorGreen,
		model.StatusRejected: ColorRed,
	}
	typeLabels = map[model.RequestType]string{
		model.RequestTypeRequisition:   "Requisition",
		model.RequestTypePurchaseOrder: "Purchase Order",
		model.RequestTypePayment:       "Payment",
	}
)

// RiskColor maps a risk level to its badge color; unknown values are gray.
func RiskColor(r model.RiskLevel) Color { return lookup(riskColors, r) }

func TypeColor(t model.RequestType) Color { return lookup(typeColors, t) }

func StatusColor(s model.ApprovalStatus) Color { return lookup(statusColors, s) }

func lookup[K comparable](table map[K]Color, k K) Color {
	if c, ok := table[k]; ok {
		return c
	}
	return ColorGray
}

// TypeLabel is the human name of a request type.
func TypeLabel(t model.RequestType) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}
