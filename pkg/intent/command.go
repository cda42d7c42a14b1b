package intent

// Kind is the closed set of actions a nurse message can map to.
type Kind string

const (
	KindRegisterPatient     Kind = "register_patient"
	KindRecordVitals        Kind = "record_vitals"
	KindAddDiagnosis        Kind = "add_diagnosis"
	KindPrescribeMedication Kind = "prescribe_medication"
	KindScheduleAppointment Kind = "schedule_appointment"
	KindQueryPatient        Kind = "query_patient"
	KindListReminders       Kind = "list_reminders"
	KindUnknown             Kind = "unknown"
)

var knownKinds = map[Kind]struct{}{
	KindRegisterPatient:     {},
	KindRecordVitals:        {},
	KindAddDiagnosis:        {},
	KindPrescribeMedication: {},
	KindScheduleAppointment: {},
	KindQueryPatient:        {},
	KindListReminders:       {},
	KindUnknown:             {},
}

// ParseKind maps an extractor label onto Kind; anything outside the set is
// KindUnknown.
func ParseKind(s string) Kind {
	k := Kind(s)
	if _, ok := knownKinds[k]; ok {
		return k
	}
	return KindUnknown
}

// Raw is what the extractor hands back before validation.
type Raw struct {
	Intent string                 `json:"intent"`
	Data   map[string]interface{} `json:"data"`
}

func UnknownRaw() Raw {
	return Raw{Intent: string(KindUnknown), Data: map[string]interface{}{}}
}

// Command is one decoded nurse instruction.
type Command interface {
	Kind() Kind
}

type RegisterPatient struct {
	Name   string
	Age    *int
	Gender *string
	Phone  *string
}

type RecordVitals struct {
	PatientID        string
	BloodPressure    *string
	Temperature      *float64
	Pulse            *int
	RespiratoryRate  *int
	OxygenSaturation *float64
	Notes            *string
}

type AddDiagnosis struct {
	PatientID  string
	DoctorName string
	Diagnosis  string
}

type PrescribeMedication struct {
	PatientID string
	Name      string
	Dosage    string
	Frequency string
	Route     string
	Notes     *string
}

type ScheduleAppointment struct {
	PatientID string
	Type      string
	// Time is the free-text time as the nurse phrased it.
	Time  string
	Notes *string
}

type QueryPatient struct {
	PatientID string
}

type ListReminders struct{}

type Unknown struct{}

func (RegisterPatient) Kind() Kind     { return KindRegisterPatient }
func (RecordVitals) Kind() Kind        { return KindRecordVitals }
func (AddDiagnosis) Kind() Kind        { return KindAddDiagnosis }
func (PrescribeMedication) Kind() Kind { return KindPrescribeMedication }
func (ScheduleAppointment) Kind() Kind { return KindScheduleAppointment }
func (QueryPatient) Kind() Kind        { return KindQueryPatient }
func (ListReminders) Kind() Kind       { return KindListReminders }
func (Unknown) Kind() Kind             { return KindUnknown }
