package casenote

// View is the render-ready classification of one record for one viewer.
type View struct {
	Request       *Request    `json:"request"`
	DisplayStatus StatusLabel `json:"display_status"`
	Involvement   Involvement `json:"involvement"`
	IsReturnable  bool        `json:"is_returnable"`
	ReturnBucket  Bucket      `json:"return_bucket"`
	Actions       Actions     `json:"actions"`

	PatientName    string `json:"patient_name"`
	PatientMRN     string `json:"patient_mrn"`
	DepartmentName string `json:"department_name"`
	DoctorName     string `json:"doctor_name"`
	LocationName   string `json:"location_name"`
	RequesterName  string `json:"requester_name"`
}

// Classify derives every view field for r from one consistent snapshot.
func Classify(r *Request, viewer Viewer) View {
	return View{
		Request:        r,
		DisplayStatus:  ResolveStatusLabel(r, viewer.Role),
		Involvement:    ClassifyInvolvement(r, viewer.ID),
		IsReturnable:   IsReturnable(r),
		ReturnBucket:   ReturnBucket(r),
		Actions:        AvailableActions(r, viewer),
		PatientName:    r.PatientName(),
		PatientMRN:     r.PatientMRN(),
		DepartmentName: r.DepartmentName(),
		DoctorName:     r.DoctorName(),
		LocationName:   r.LocationName(),
		RequesterName:  r.RequesterName(),
	}
}

// ClassifyAll classifies records in order.
func ClassifyAll(records []*Request, viewer Viewer) []View {
	views := make([]View, len(records))
	for i, r := range records {
		views[i] = Classify(r, viewer)
	}
	return views
}
