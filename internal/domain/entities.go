package domain

// EntityKey is the canonical name of one extracted value, e.g. the patient's
// date of birth. Form mapping rules refer to entities by key.
type EntityKey string

const (
	KeyPatientName EntityKey = "patient_name"
	KeyPatientDOB  EntityKey = "patient_dob"
	KeyMemberID    EntityKey = "member_id"
	KeyPayer       EntityKey = "payer"
	KeyGroupNumber EntityKey = "group_number"
	KeyMedication  EntityKey = "medication"
	KeyGenericName EntityKey = "generic_name"
	KeyDosage      EntityKey = "dosage"
	KeyRoute       EntityKey = "route"
	KeyFrequency   EntityKey = "frequency"
	KeyNDC         EntityKey = "ndc"
	KeyPrescriber  EntityKey = "prescriber"
	KeyNPI         EntityKey = "npi"
	KeyPhone       EntityKey = "phone"
	KeyFax         EntityKey = "fax"
	KeyDiagnosis   EntityKey = "diagnosis"
	KeyICD10       EntityKey = "icd10"
	KeyServiceDate EntityKey = "service_date"
)

// EntityCatalog is the canonical key order. Positional form assignment walks
// extracted values in this order.
var EntityCatalog = []EntityKey{
	KeyPatientName,
	KeyPatientDOB,
	KeyMemberID,
	KeyPayer,
	KeyGroupNumber,
	KeyMedication,
	KeyGenericName,
	KeyDosage,
	KeyRoute,
	KeyFrequency,
	KeyNDC,
	KeyPrescriber,
	KeyNPI,
	KeyPhone,
	KeyFax,
	KeyDiagnosis,
	KeyICD10,
	KeyServiceDate,
}

// KeyGroups maps each canonical key to the entity group it is reported in.
var KeyGroups = map[EntityKey]EntityGroup{
	KeyPatientName: GroupPatient,
	KeyPatientDOB:  GroupPatient,
	KeyMemberID:    GroupInsurance,
	KeyPayer:       GroupInsurance,
	KeyGroupNumber: GroupInsurance,
	KeyMedication:  GroupMedications,
	KeyGenericName: GroupMedications,
	KeyDosage:      GroupMedications,
	KeyRoute:       GroupMedications,
	KeyFrequency:   GroupMedications,
	KeyNDC:         GroupMedications,
	KeyPrescriber:  GroupProviders,
	KeyNPI:         GroupProviders,
	KeyPhone:       GroupProviders,
	KeyFax:         GroupProviders,
	KeyDiagnosis:   GroupDiagnoses,
	KeyICD10:       GroupDiagnoses,
	KeyServiceDate: GroupDates,
}

// GroupOf returns the group for key, or "" when the key is not catalogued.
func GroupOf(key EntityKey) EntityGroup {
	return KeyGroups[key]
}
