package cms

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("cms: entry not found")

// Collection paths.
const (
	PathResidents        = "/api/profile-residents"
	PathPrograms         = "/api/programs"
	PathProgramStatuses  = "/api/program-statuses"
	PathResidentPrograms = "/api/resident-programs"
	PathResidentFields   = "/api/resident-fields"
	PathReports          = "/api/reports"
)

// Populate sets of the resident views.
var (
	PopulateResidentCard    = []string{"avatar", "class"}
	PopulateResidentProfile = []string{"avatar", "class", "parent_users", "educator_user"}
	PopulateResidentRecords = []string{
		"parent_users",
		"educator_user",
		"class",
		"medical_informations.document",
		"medical_informations.prescription",
		"assessments.assessment_file",
	}
)

// ResidentQuery filters the profile-residents collection. Empty fields are not sent.
type ResidentQuery struct {
	DocumentID string
	Branch     string
	Educator   string
	Parent     string
	Locale     string
	Populate   []string
}

func (q ResidentQuery) Values() url.Values {
	v := url.Values{}
	for _, p := range q.Populate {
		v.Add("populate", p)
	}
	setIf(v, "filters[documentId][$eq]", q.DocumentID)
	setIf(v, "filters[branch][documentId][$eq]", q.Branch)
	setIf(v, "filters[educator_user][documentId][$eq]", q.Educator)
	setIf(v, "filters[parent_users][documentId][$eq]", q.Parent)
	setIf(v, "locale", q.Locale)
	return v
}

// ResidentFieldQuery filters the resident-fields collection.
type ResidentFieldQuery struct {
	Kid            string // kid documentId
	ParentUsername string
	Date           string // YYYY-MM-DD
	Page           int
	PageSize       int
}

func (q ResidentFieldQuery) Values() url.Values {
	v := url.Values{"populate": {"program_skill", "program_status"}}
	setIf(v, "filters[kid_profile][documentId][$eq]", q.Kid)
	setIf(v, "filters[kid_profile][parent_users][username][$in][0]", q.ParentUsername)
	setIf(v, "filters[activity_date][$eq]", q.Date)
	if q.Page > 0 {
		v.Set("pagination[page]", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("pagination[pageSize]", strconv.Itoa(q.PageSize))
	}
	return v
}

func setIf(v url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		v.Set(key, value)
	}
}

func (c *Client) Residents(ctx context.Context, q ResidentQuery) ([]Resident, error) {
	var res Collection[Resident]
	if err := c.Get(ctx, PathResidents, q.Values(), &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Resident fetches one resident by documentId.
func (c *Client) Resident(ctx context.Context, documentID, locale string, populate ...string) (Resident, error) {
	if documentID == "" {
		return Resident{}, ErrNotFound
	}
	list, err := c.Residents(ctx, ResidentQuery{DocumentID: documentID, Locale: locale, Populate: populate})
	if err != nil {
		return Resident{}, err
	}
	if len(list) == 0 {
		return Resident{}, ErrNotFound
	}
	return list[0], nil
}

func (c *Client) Programs(ctx context.Context) ([]Program, error) {
	var res Collection[Program]
	if err := c.Get(ctx, PathPrograms, nil, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (c *Client) ProgramStatuses(ctx context.Context) ([]ProgramStatus, error) {
	var res Collection[ProgramStatus]
	if err := c.Get(ctx, PathProgramStatuses, nil, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ResidentPrograms lists the programs a kid is enrolled in, with their skills.
func (c *Client) ResidentPrograms(ctx context.Context, kidDocumentID string) ([]ResidentProgram, error) {
	q := url.Values{"populate": {"program_skills", "program"}}
	q.Set("filters[kid_profile][documentId][$eq]", kidDocumentID)

	var res Collection[ResidentProgram]
	if err := c.Get(ctx, PathResidentPrograms, q, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (c *Client) ResidentFields(ctx context.Context, q ResidentFieldQuery) (Collection[ResidentField], error) {
	var res Collection[ResidentField]
	if err := c.Get(ctx, PathResidentFields, q.Values(), &res); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Client) CreateResidentField(ctx context.Context, in ResidentFieldInput) (ResidentField, error) {
	var res Single[ResidentField]
	if err := c.Post(ctx, PathResidentFields, payload[ResidentFieldInput]{Data: in}, &res); err != nil {
		return res.Data, err
	}
	return res.Data, nil
}

func (c *Client) UpdateResidentField(ctx context.Context, documentID string, in ResidentFieldInput) (ResidentField, error) {
	var res Single[ResidentField]
	path := PathResidentFields + "/" + url.PathEscape(documentID)
	if err := c.Put(ctx, path, payload[ResidentFieldInput]{Data: in}, &res); err != nil {
		return res.Data, err
	}
	return res.Data, nil
}

func (c *Client) Reports(ctx context.Context, locale string) ([]Report, error) {
	q := url.Values{"populate": {"report_file", "profile_resident.avatar", "profile_resident.class"}}
	setIf(q, "locale", locale)

	var res Collection[Report]
	if err := c.Get(ctx, PathReports, q, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Count returns the number of entries of the collection at path.
func (c *Client) Count(ctx context.Context, path string, query url.Values) (int, error) {
	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("pagination[pageSize]", "1")

	var res Collection[struct{}]
	if err := c.Get(ctx, path, q, &res); err != nil {
		return 0, err
	}
	return res.Total(), nil
}

// MediaURL makes an uploaded file URL absolute; the CMS returns local uploads as paths.
func (c *Client) MediaURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return c.baseURL + "/" + strings.TrimLeft(u, "/")
}
