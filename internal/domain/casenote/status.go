package casenote

import "strings"

// Icon names understood by the UI icon set.
const (
	IconClock         = "Clock"
	IconCheckCircle   = "CheckCircle"
	IconAlertTriangle = "AlertTriangle"
)

// Label variants that need distinct rendering even when the text matches.
const (
	VariantDefault           = "default"
	VariantReturnedCompleted = "returned_completed"
)

// StatusLabel is the display treatment of a record's status badge.
type StatusLabel struct {
	Text       string `json:"text"`
	ColorClass string `json:"color_class"`
	Icon       string `json:"icon"`
	Variant    string `json:"variant"`
}

const (
	colorRed     = "bg-red-100 text-red-800"
	colorPurple  = "bg-purple-100 text-purple-800"
	colorOrange  = "bg-orange-100 text-orange-800"
	colorGreen   = "bg-green-100 text-green-800"
	colorYellow  = "bg-yellow-100 text-yellow-800"
	colorEmerald = "bg-emerald-100 text-emerald-800"
)

var statusTable = map[Status]StatusLabel{
	StatusPending:    {Text: "PENDING", ColorClass: colorYellow, Icon: IconClock, Variant: VariantDefault},
	StatusApproved:   {Text: "APPROVED", ColorClass: colorGreen, Icon: IconCheckCircle, Variant: VariantDefault},
	StatusInProgress: {Text: "IN PROGRESS", ColorClass: colorPurple, Icon: IconClock, Variant: VariantDefault},
	StatusCompleted:  {Text: "COMPLETED", ColorClass: colorEmerald, Icon: IconCheckCircle, Variant: VariantDefault},
	StatusRejected:   {Text: "REJECTED", ColorClass: colorRed, Icon: IconAlertTriangle, Variant: VariantDefault},
}

var (
	labelRejectedReturn     = StatusLabel{Text: "REJECTED RETURN", ColorClass: colorRed, Icon: IconAlertTriangle, Variant: VariantDefault}
	labelWaitingMRApproval  = StatusLabel{Text: "WAITING FOR MR APPROVAL", ColorClass: colorPurple, Icon: IconClock, Variant: VariantDefault}
	labelWaitingForApproval = StatusLabel{Text: "WAITING FOR APPROVAL", ColorClass: colorOrange, Icon: IconClock, Variant: VariantDefault}
	labelReturnedCompleted  = StatusLabel{Text: "COMPLETED", ColorClass: colorGreen, Icon: IconCheckCircle, Variant: VariantReturnedCompleted}
)

// knownTexts holds every label text that does not echo a caller-supplied status.
var knownTexts = func() map[string]bool {
	m := map[string]bool{
		labelRejectedReturn.Text:     true,
		labelWaitingMRApproval.Text:  true,
		labelWaitingForApproval.Text: true,
		labelReturnedCompleted.Text:  true,
	}
	for _, l := range statusTable {
		m[l.Text] = true
	}
	return m
}()

// Known reports whether the label is one of the fixed badges rather than the
// fallback for an unrecognised status.
func (l StatusLabel) Known() bool {
	return knownTexts[l.Text]
}

// ResolveStatusLabel derives the badge shown for r. Rules are evaluated in
// priority order and the first match wins; several flags may be set at once.
// The label does not currently vary by role.
func ResolveStatusLabel(r *Request, role Role) StatusLabel {
	switch {
	case r.IsRejectedReturn:
		return labelRejectedReturn
	case r.IsIndividual():
		return labelWaitingMRApproval
	case r.IsWaitingForApproval:
		return labelWaitingForApproval
	case r.Status == StatusCompleted && r.RequestedByUserID != r.PIC():
		return labelReturnedCompleted
	}

	if label, ok := statusTable[r.Status]; ok {
		return label
	}

	// Unknown or empty statuses keep the pending treatment.
	fallback := statusTable[StatusPending]
	if text := statusText(r.Status); text != "" {
		fallback.Text = text
	}
	return fallback
}

func statusText(s Status) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(string(s)), "_", " "))
}
