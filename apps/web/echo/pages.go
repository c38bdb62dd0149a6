package echoweb

import (
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/core/nav"
	"github.com/trezcool/mothercare/core/session"
	"github.com/trezcool/mothercare/services/cms"
)

const (
	msgSaved = "Saved."

	// upper bound of the fields recorded for one kid on one day
	fieldsPerDay = 100
)

type pages struct {
	srv *Server
	now func() time.Time
}

func registerPages(g *echo.Group, s *Server) {
	p := pages{srv: s, now: time.Now}

	g.GET("", p.dashboard)
	g.GET("/resident", p.residents)
	g.GET("/resident/:id", p.resident)
	g.GET("/medical", p.medical)
	g.GET("/assessment", p.assessment)
	g.GET("/fields", p.fields)
	g.GET("/fields/:residentId", p.fieldSheet)
	g.POST("/fields/:residentId", p.saveField)
	g.GET("/reporting", p.reporting)
	g.GET("/kids", p.kids)
	g.GET("/kids/:id", p.kid)
}

type (
	dashboardData struct {
		Residents int
		Programs  int
		Reports   int
	}

	residentsData struct {
		Rows       []cms.Resident
		Listing    listing
		Page       pageInfo
		DetailPath string
	}

	residentData struct {
		Locale   string
		Resident cms.Resident
		BackPath string
	}

	medicalRow struct {
		Resident cms.Resident
		Record   cms.Medical
	}

	assessmentRow struct {
		Resident   cms.Resident
		Assessment cms.Assessment
	}

	rowsData[T any] struct {
		Rows []T
	}

	fieldsData struct {
		Programs  []cms.Program
		Residents []cms.Resident
	}

	reportingData struct {
		Reports []cms.Report
	}

	kidsData struct {
		Kids   []cms.Resident
		Date   string
		Fields []cms.ResidentField
		Page   pageInfo
	}
)

// scopeQuery narrows the resident collection to what the visitor may list.
// ok is false when the visitor cannot be matched to any resident.
func scopeQuery(v *visit) (q cms.ResidentQuery, ok bool) {
	switch v.role() {
	case session.RoleAdmin:
		if v.profile.Branch != nil {
			q.Branch = v.profile.Branch.DocumentID
		}
		return q, true
	case session.RoleEducator:
		q.Educator = v.profile.DocumentID
	case session.RoleParent:
		q.Parent = v.profile.DocumentID
	default:
		return q, false
	}
	return q, v.profile.DocumentID != ""
}

// canSee reports whether the visitor may open the records of r.
func canSee(v *visit, r cms.Resident) bool {
	switch v.role() {
	case session.RoleAdmin:
		return true
	case session.RoleEducator:
		return r.HasEducator(v.profile.DocumentID) || r.HasParent(v.profile.DocumentID)
	case session.RoleParent:
		return r.HasParent(v.profile.DocumentID)
	}
	return false
}

// visibleResident fetches the resident behind the :id param, answering 404 outside the visitor's scope.
func visibleResident(ctx echo.Context, v *visit, param, locale string, populate ...string) (cms.Resident, error) {
	r, err := v.cms.Resident(ctx.Request().Context(), ctx.Param(param), locale, populate...)
	if err != nil {
		return r, err
	}
	if !canSee(v, r) {
		return r, errPageNotFound
	}
	return r, nil
}

// Handlers

func (p pages) dashboard(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	scope, _ := scopeQuery(v)

	var data dashboardData
	g, gCtx := errgroup.WithContext(ctx.Request().Context())
	g.Go(func() (err error) {
		data.Residents, err = v.cms.Count(gCtx, cms.PathResidents, scope.Values())
		return errors.Wrap(err, "counting residents")
	})
	g.Go(func() (err error) {
		data.Programs, err = v.cms.Count(gCtx, cms.PathPrograms, nil)
		return errors.Wrap(err, "counting programs")
	})
	g.Go(func() (err error) {
		data.Reports, err = v.cms.Count(gCtx, cms.PathReports, nil)
		return errors.Wrap(err, "counting reports")
	})
	if err = g.Wait(); err != nil {
		return err
	}
	return p.srv.renderPage(ctx, http.StatusOK, "dashboard", "Dashboard", data)
}

func (p pages) residents(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	var lst listing
	lst.Bind(ctx)

	data := residentsData{Listing: lst, DetailPath: nav.PathResident}
	if q, ok := scopeQuery(v); ok {
		q.Populate = cms.PopulateResidentCard
		all, err := v.cms.Residents(ctx.Request().Context(), q)
		if err != nil {
			return errors.Wrap(err, "listing residents")
		}
		var matched []cms.Resident
		for _, r := range all {
			if lst.Matches(r.DisplayName(), r.NickName, r.ClassName()) {
				matched = append(matched, r)
			}
		}
		start, end := lst.window(len(matched))
		data.Rows = matched[start:end]
		data.Page = newPageInfo(ctx.Request().URL, lst.Page, lst.Size, len(matched))
	}
	return p.srv.renderPage(ctx, http.StatusOK, "residents", "Residents", data)
}

func (p pages) resident(ctx echo.Context) error {
	return p.profile(ctx, nav.PathResident)
}

func (p pages) kid(ctx echo.Context) error {
	return p.profile(ctx, nav.PathKids)
}

func (p pages) profile(ctx echo.Context, backPath string) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	locale := bindLocale(ctx)
	r, err := visibleResident(ctx, v, "id", locale, cms.PopulateResidentProfile...)
	if err != nil {
		return err
	}
	data := residentData{Locale: locale, Resident: r, BackPath: backPath}
	return p.srv.renderPage(ctx, http.StatusOK, "resident", r.DisplayName(), data, withLang(locale))
}

// recordsOf lists the residents whose medical and assessment records the visitor may read.
func recordsOf(ctx echo.Context, v *visit) ([]cms.Resident, error) {
	all, err := v.cms.Residents(ctx.Request().Context(), cms.ResidentQuery{Populate: cms.PopulateResidentRecords})
	if err != nil {
		return nil, errors.Wrap(err, "listing resident records")
	}
	out := all[:0]
	for _, r := range all {
		if canSee(v, r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p pages) medical(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	residents, err := recordsOf(ctx, v)
	if err != nil {
		return err
	}
	var data rowsData[medicalRow]
	for _, r := range residents {
		for _, m := range r.MedicalInformations {
			data.Rows = append(data.Rows, medicalRow{Resident: r, Record: m})
		}
	}
	return p.srv.renderPage(ctx, http.StatusOK, "medical", "Medical", data)
}

func (p pages) assessment(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	residents, err := recordsOf(ctx, v)
	if err != nil {
		return err
	}
	var data rowsData[assessmentRow]
	for _, r := range residents {
		for _, a := range r.Assessments {
			data.Rows = append(data.Rows, assessmentRow{Resident: r, Assessment: a})
		}
	}
	return p.srv.renderPage(ctx, http.StatusOK, "assessment", "Assessment", data)
}

func (p pages) fields(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	var data fieldsData
	g, gCtx := errgroup.WithContext(ctx.Request().Context())
	g.Go(func() (err error) {
		data.Programs, err = v.cms.Programs(gCtx)
		return errors.Wrap(err, "listing programs")
	})
	if q, ok := scopeQuery(v); ok {
		q.Populate = cms.PopulateResidentCard
		g.Go(func() (err error) {
			data.Residents, err = v.cms.Residents(gCtx, q)
			return errors.Wrap(err, "listing residents")
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}
	return p.srv.renderPage(ctx, http.StatusOK, "fields", "Fields", data)
}

// Field sheet

type (
	skillRow struct {
		Skill cms.ProgramSkill
		Field *cms.ResidentField // nil when not evaluated on that day
	}

	programRow struct {
		Name   string
		Skills []skillRow
	}

	sheetData struct {
		Resident cms.Resident
		Date     string
		Errors   map[string]string
		Statuses []cms.ProgramStatus
		Programs []programRow
	}

	FieldForm struct {
		Date     string `form:"date" validate:"required,datetime=2006-01-02"`
		Skill    string `form:"skill" validate:"required"`
		Status   string `form:"status" validate:"required"`
		Comments string `form:"comments" validate:"max=2000"`
	}
)

// StatusID is the status already recorded for the skill, if any.
func (r skillRow) StatusID() string {
	if r.Field == nil || r.Field.ProgramStatus == nil {
		return ""
	}
	return r.Field.ProgramStatus.DocumentID
}

// skill finds the row of skillID, or nil when the resident is not enrolled in it.
func (d *sheetData) skill(skillID string) *skillRow {
	for i := range d.Programs {
		for j := range d.Programs[i].Skills {
			if d.Programs[i].Skills[j].Skill.DocumentID == skillID {
				return &d.Programs[i].Skills[j]
			}
		}
	}
	return nil
}

func (ff *FieldForm) Validate(s *Server) error {
	ff.Date = core.CleanString(ff.Date)
	ff.Comments = core.CleanString(ff.Comments)
	if err := s.deps.Validate.Struct(ff); err != nil {
		return core.TranslateValidationErrors(err, s.deps.Translator)
	}
	return nil
}

// loadSheet fetches what the evaluation of one resident on one day needs.
func loadSheet(ctx echo.Context, v *visit, date string) (*sheetData, error) {
	r, err := visibleResident(ctx, v, "residentId", "", cms.PopulateResidentProfile...)
	if err != nil {
		return nil, err
	}
	data := &sheetData{Resident: r, Date: date}

	var (
		enrolled []cms.ResidentProgram
		recorded cms.Collection[cms.ResidentField]
	)
	g, gCtx := errgroup.WithContext(ctx.Request().Context())
	g.Go(func() (err error) {
		enrolled, err = v.cms.ResidentPrograms(gCtx, r.DocumentID)
		return errors.Wrap(err, "listing resident programs")
	})
	g.Go(func() (err error) {
		data.Statuses, err = v.cms.ProgramStatuses(gCtx)
		return errors.Wrap(err, "listing program statuses")
	})
	g.Go(func() (err error) {
		q := cms.ResidentFieldQuery{Kid: r.DocumentID, Date: date, PageSize: fieldsPerDay}
		recorded, err = v.cms.ResidentFields(gCtx, q)
		return errors.Wrap(err, "listing resident fields")
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	bySkill := make(map[string]*cms.ResidentField, len(recorded.Data))
	for i := range recorded.Data {
		if sk := recorded.Data[i].ProgramSkill; sk != nil {
			bySkill[sk.DocumentID] = &recorded.Data[i]
		}
	}
	for _, rp := range enrolled {
		row := programRow{Name: rp.Name}
		if rp.Program != nil && rp.Program.Name != "" {
			row.Name = rp.Program.Name
		}
		for _, sk := range rp.ProgramSkills {
			row.Skills = append(row.Skills, skillRow{Skill: sk, Field: bySkill[sk.DocumentID]})
		}
		data.Programs = append(data.Programs, row)
	}
	return data, nil
}

func (p pages) renderSheet(ctx echo.Context, code int, data *sheetData, opts ...viewOption) error {
	return p.srv.renderPage(ctx, code, "field", "Fields", data, opts...)
}

func (p pages) fieldSheet(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	data, err := loadSheet(ctx, v, bindDate(ctx, p.now()))
	if err != nil {
		return err
	}
	var opts []viewOption
	if ctx.QueryParam("saved") != "" {
		opts = append(opts, withFlash(msgSaved))
	}
	return p.renderSheet(ctx, http.StatusOK, data, opts...)
}

// saveField records the evaluation of one skill. An existing field for the same skill and day is updated.
func (p pages) saveField(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	var form FieldForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to FieldForm")
	}
	var vErr *core.ValidationError
	date := form.Date
	if err = form.Validate(p.srv); err != nil {
		if !errors.As(err, &vErr) {
			return err
		}
		date = bindDate(ctx, p.now())
	}

	data, err := loadSheet(ctx, v, date)
	if err != nil {
		return err
	}
	if vErr != nil {
		data.Errors = vErr.FieldMap()
		return p.renderSheet(ctx, http.StatusBadRequest, data, withError(msgInvalidForm))
	}

	row := data.skill(form.Skill)
	if row == nil {
		data.Errors = map[string]string{"skill": "the resident is not enrolled in this skill"}
		return p.renderSheet(ctx, http.StatusBadRequest, data, withError(msgInvalidForm))
	}

	in := cms.ResidentFieldInput{
		ActivityDate:  form.Date,
		ProgramStatus: form.Status,
		Comments:      form.Comments,
		ValidatedBy:   v.role().Label(),
		ProgramSkill:  form.Skill,
		KidProfile:    data.Resident.DocumentID,
	}
	// the target is always the field loaded for this kid, skill and day
	reqCtx := ctx.Request().Context()
	if row.Field != nil {
		_, err = v.cms.UpdateResidentField(reqCtx, row.Field.DocumentID, in)
	} else {
		_, err = v.cms.CreateResidentField(reqCtx, in)
	}
	if err != nil {
		return errors.Wrap(err, "saving resident field")
	}

	q := url.Values{dateParam: {form.Date}, "saved": {"1"}}
	return ctx.Redirect(http.StatusSeeOther, ctx.Request().URL.Path+"?"+q.Encode())
}

func (p pages) reporting(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	reports, err := v.cms.Reports(ctx.Request().Context(), bindLocale(ctx))
	if err != nil {
		return errors.Wrap(err, "listing reports")
	}
	return p.srv.renderPage(ctx, http.StatusOK, "reporting", "Reporting", reportingData{Reports: reports})
}

func (p pages) kids(ctx echo.Context) error {
	v, err := getContextVisit(ctx)
	if err != nil {
		return err
	}
	var lst listing
	lst.Bind(ctx)
	data := kidsData{Date: bindDate(ctx, p.now())}

	scope, ok := scopeQuery(v)
	if !ok || v.profile.Username == "" {
		data.Page = newPageInfo(ctx.Request().URL, 1, lst.Size, 0)
		return p.srv.renderPage(ctx, http.StatusOK, "kids", "Kids", data)
	}
	scope.Populate = cms.PopulateResidentCard

	var recorded cms.Collection[cms.ResidentField]
	g, gCtx := errgroup.WithContext(ctx.Request().Context())
	g.Go(func() (err error) {
		data.Kids, err = v.cms.Residents(gCtx, scope)
		return errors.Wrap(err, "listing kids")
	})
	g.Go(func() (err error) {
		q := cms.ResidentFieldQuery{ParentUsername: v.profile.Username, Date: data.Date, Page: lst.Page, PageSize: lst.Size}
		recorded, err = v.cms.ResidentFields(gCtx, q)
		return errors.Wrap(err, "listing activity")
	})
	if err = g.Wait(); err != nil {
		return err
	}
	data.Fields = recorded.Data
	data.Page = newPageInfo(ctx.Request().URL, lst.Page, lst.Size, recorded.Total())
	return p.srv.renderPage(ctx, http.StatusOK, "kids", "Kids", data)
}
