package cms

import (
	"encoding/json"
	"strings"
)

type (
	Pagination struct {
		Page      int `json:"page"`
		PageSize  int `json:"pageSize"`
		PageCount int `json:"pageCount"`
		Total     int `json:"total"`
	}

	Meta struct {
		Pagination *Pagination `json:"pagination,omitempty"`
	}

	// Collection is the envelope of every list endpoint.
	Collection[T any] struct {
		Data []T `json:"data"`
		Meta Meta `json:"meta"`
	}

	// Single is the envelope of every single-entry endpoint.
	Single[T any] struct {
		Data T    `json:"data"`
		Meta Meta `json:"meta"`
	}

	// payload wraps the body of every write.
	payload[T any] struct {
		Data T `json:"data"`
	}
)

// Total is the count reported by the backend, or the length of Data when not paginated.
func (c Collection[T]) Total() int {
	if c.Meta.Pagination != nil {
		return c.Meta.Pagination.Total
	}
	return len(c.Data)
}

type (
	MediaFormat struct {
		URL string `json:"url"`
	}

	Media struct {
		ID      json.Number            `json:"id,omitempty"`
		Name    string                 `json:"name,omitempty"`
		URL     string                 `json:"url"`
		Mime    string                 `json:"mime,omitempty"`
		Formats map[string]MediaFormat `json:"formats,omitempty"`
	}

	Class struct {
		ID   json.Number `json:"id,omitempty"`
		Name string      `json:"name"`
	}

	UserRef struct {
		ID         json.Number `json:"id,omitempty"`
		DocumentID string      `json:"documentId,omitempty"`
		Username   string      `json:"username,omitempty"`
		Email      string      `json:"email,omitempty"`
	}

	Medical struct {
		ID           json.Number `json:"id,omitempty"`
		Diagnosis    string      `json:"diagnosis"`
		Medication   string      `json:"medication"`
		Doctor       string      `json:"doctor"`
		DateOfCheck  string      `json:"date_of_check"`
		Document     []Media     `json:"document"`
		Prescription []Media     `json:"prescription"`
	}

	Assessment struct {
		ID             json.Number `json:"id,omitempty"`
		Title          string      `json:"title,omitempty"`
		Date           string      `json:"date,omitempty"`
		AssessmentFile []Media     `json:"assessment_file"`
	}

	Resident struct {
		ID                  json.Number  `json:"id"`
		DocumentID          string       `json:"documentId"`
		FullName            string       `json:"full_name"`
		Name                string       `json:"name"`
		NickName            string       `json:"nick_name"`
		Gender              string       `json:"gender"`
		DateOfBirth         string       `json:"date_of_birth"`
		MotherName          string       `json:"Mother_name"`
		FatherName          string       `json:"Father_name"`
		ParentsAddress      string       `json:"address_parents"`
		KidsAddress         string       `json:"address_kinds"`
		Number              string       `json:"number"`
		Comments            string       `json:"comments"`
		Locale              string       `json:"locale,omitempty"`
		Avatar              *Media       `json:"avatar"`
		Class               *Class       `json:"class"`
		EducatorUser        *UserRef     `json:"educator_user"`
		ParentUsers         []UserRef    `json:"parent_users"`
		MedicalInformations []Medical    `json:"medical_informations"`
		Assessments         []Assessment `json:"assessments"`
	}

	Program struct {
		ID            json.Number    `json:"id"`
		DocumentID    string         `json:"documentId"`
		Name          string         `json:"name"`
		Description   string         `json:"description,omitempty"`
		ProgramSkills []ProgramSkill `json:"program_skills,omitempty"`
	}

	ProgramSkill struct {
		ID         json.Number `json:"id"`
		DocumentID string      `json:"documentId"`
		Name       string      `json:"name"`
	}

	ProgramStatus struct {
		ID         json.Number `json:"id"`
		DocumentID string      `json:"documentId"`
		Name       string      `json:"name"`
		Score      int         `json:"score"`
	}

	// ResidentProgram enrolls one kid into a program with a subset of its skills.
	ResidentProgram struct {
		ID            json.Number    `json:"id"`
		DocumentID    string         `json:"documentId"`
		Name          string         `json:"name"`
		Program       *Program       `json:"program,omitempty"`
		ProgramSkills []ProgramSkill `json:"program_skills"`
	}

	// ResidentField is one skill evaluation of a kid on a given day.
	ResidentField struct {
		ID            json.Number    `json:"id"`
		DocumentID    string         `json:"documentId"`
		ActivityDate  string         `json:"activity_date"`
		Comments      string         `json:"comments"`
		ValidatedBy   string         `json:"validated_by"`
		ProgramSkill  *ProgramSkill  `json:"program_skill"`
		ProgramStatus *ProgramStatus `json:"program_status"`
		KidProfile    *Resident      `json:"kid_profile,omitempty"`
	}

	// ResidentFieldInput is the write payload of a ResidentField; relations are document ids.
	ResidentFieldInput struct {
		ActivityDate  string `json:"activity_date"`
		ProgramStatus string `json:"program_status"`
		Comments      string `json:"comments"`
		ValidatedBy   string `json:"validated_by"`
		ProgramSkill  string `json:"program_skill"`
		KidProfile    string `json:"kid_profile"`
	}

	Report struct {
		ID              json.Number `json:"id"`
		DocumentID      string      `json:"documentId"`
		DateOfUpload    string      `json:"date_of_upload"`
		ReportFile      []Media     `json:"report_file"`
		ProfileResident *Resident   `json:"profile_resident"`
	}
)

// DisplayName is the best human name of the resident.
func (r Resident) DisplayName() string {
	for _, n := range []string{r.FullName, r.Name, r.NickName} {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return r.DocumentID
}

func (r Resident) ClassName() string {
	if r.Class == nil {
		return ""
	}
	return r.Class.Name
}

// HasParent reports whether the user identified by documentID is one of the resident's parents.
func (r Resident) HasParent(documentID string) bool {
	for _, p := range r.ParentUsers {
		if documentID != "" && p.DocumentID == documentID {
			return true
		}
	}
	return false
}

// HasEducator reports whether the user identified by documentID is the resident's educator.
func (r Resident) HasEducator(documentID string) bool {
	return documentID != "" && r.EducatorUser != nil && r.EducatorUser.DocumentID == documentID
}

// Thumbnail returns the thumbnail URL of the media, falling back to the original.
func (m *Media) Thumbnail() string {
	if m == nil {
		return ""
	}
	if f, ok := m.Formats["thumbnail"]; ok && f.URL != "" {
		return f.URL
	}
	return m.URL
}
