// Package cmstest runs an in-process fake of the CMS for tests.
package cmstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/mothercare/services/cms"
)

const Password = "password123"

// Fixture users, all sharing Password.
const (
	AdminEmail    = "admin@mothercare.test"
	EducatorEmail = "dara@mothercare.test"
	ParentEmail   = "srey@mothercare.test"
	UnknownEmail  = "ghost@mothercare.test"

	EducatorDocID = "edu-dara"
	ParentDocID   = "par-srey"
	BranchDocID   = "branch-pp"
)

type user struct {
	password string
	docID    string
	profile  json.RawMessage
}

// Server is a fake Strapi: it issues HS256 tokens and serves the collections the dashboard reads.
// Fields are exported so tests can seed or inspect them; guard concurrent access with Lock/Unlock.
type Server struct {
	*httptest.Server
	sync.Mutex

	Residents        []cms.Resident
	Programs         []cms.Program
	ProgramSkills    []cms.ProgramSkill
	ProgramStatuses  []cms.ProgramStatus
	ResidentPrograms map[string][]cms.ResidentProgram // by kid documentId
	Fields           []cms.ResidentField
	Reports          []cms.Report

	secret  []byte
	users   map[string]user // by identifier
	fail    map[string]int  // path prefix -> status
	revoked map[string]bool // subject -> revoked
	nextID  int
}

// NewServer starts a fake seeded with one user per role, plus one whose role is outside the role set.
func NewServer() *Server {
	s := &Server{
		secret:           []byte("cmstest-secret"),
		users:            make(map[string]user),
		fail:             make(map[string]int),
		revoked:          make(map[string]bool),
		ResidentPrograms: make(map[string][]cms.ResidentProgram),
		nextID:           100,
	}
	s.AddUser(AdminEmail, Password, "adm-root", fmt.Sprintf(
		`{"id":1,"documentId":"adm-root","username":"admin","email":%q,"role":{"id":3,"name":"Admin","type":"admin"},"branch":{"documentId":%q,"name":"Phnom Penh"}}`,
		AdminEmail, BranchDocID))
	s.AddUser(EducatorEmail, Password, EducatorDocID, fmt.Sprintf(
		`{"id":2,"documentId":%q,"username":"dara","email":%q,"role":{"id":4,"name":"Educator","type":"educator"},"branch":{"documentId":%q,"name":"Phnom Penh"}}`,
		EducatorDocID, EducatorEmail, BranchDocID))
	s.AddUser(ParentEmail, Password, ParentDocID, fmt.Sprintf(
		`{"id":3,"documentId":%q,"username":"srey","email":%q,"role":{"id":5,"name":"Parent","type":"parent"}}`,
		ParentDocID, ParentEmail))
	s.AddUser(UnknownEmail, Password, "ghost", fmt.Sprintf(
		`{"id":4,"documentId":"ghost","username":"ghost","email":%q,"role":{"id":1,"name":"Authenticated","type":"authenticated"}}`,
		UnknownEmail))
	s.seed()

	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) seed() {
	s.Residents = []cms.Resident{
		{
			ID: "1", DocumentID: "kid-sok", FullName: "Sok Dara", NickName: "Soksok", Gender: "male",
			DateOfBirth: "2020-03-01", Comments: "Loves **drawing**.",
			Avatar:       &cms.Media{URL: "/uploads/sok.png", Formats: map[string]cms.MediaFormat{"thumbnail": {URL: "/uploads/thumb_sok.png"}}},
			Class:        &cms.Class{ID: "1", Name: "Sunflower"},
			EducatorUser: &cms.UserRef{DocumentID: EducatorDocID, Username: "dara"},
			ParentUsers:  []cms.UserRef{{DocumentID: ParentDocID, Username: "srey"}},
			MedicalInformations: []cms.Medical{
				{ID: "11", Diagnosis: "Flu", Medication: "Paracetamol", Doctor: "Dr. Chan", DateOfCheck: "2024-05-02"},
			},
			Assessments: []cms.Assessment{
				{ID: "21", AssessmentFile: []cms.Media{{Name: "term1.pdf", URL: "/uploads/term1.pdf"}}},
			},
		},
		{
			ID: "2", DocumentID: "kid-mey", FullName: "Mey Lina", Gender: "female", DateOfBirth: "2019-11-12",
			Class:       &cms.Class{ID: "2", Name: "Lotus"},
			ParentUsers: []cms.UserRef{{DocumentID: "par-other", Username: "other"}},
			MedicalInformations: []cms.Medical{
				{ID: "12", Diagnosis: "Allergy", Medication: "Antihistamine", Doctor: "Dr. Kim", DateOfCheck: "2024-04-10"},
			},
		},
	}
	s.ProgramSkills = []cms.ProgramSkill{
		{ID: "1", DocumentID: "skill-count", Name: "Counting"},
		{ID: "2", DocumentID: "skill-color", Name: "Colors"},
	}
	s.Programs = []cms.Program{{ID: "1", DocumentID: "prog-math", Name: "Early maths", ProgramSkills: s.ProgramSkills}}
	s.ProgramStatuses = []cms.ProgramStatus{
		{ID: "1", DocumentID: "status-start", Name: "Started", Score: 1},
		{ID: "2", DocumentID: "status-done", Name: "Mastered", Score: 3},
	}
	s.ResidentPrograms["kid-sok"] = []cms.ResidentProgram{
		{ID: "1", DocumentID: "rp-sok-math", Name: "Early maths", Program: &s.Programs[0], ProgramSkills: s.ProgramSkills},
	}
	s.Reports = []cms.Report{
		{ID: "1", DocumentID: "rep-1", DateOfUpload: "2024-06-01", ReportFile: []cms.Media{{Name: "june.pdf", URL: "/uploads/june.pdf"}}, ProfileResident: &s.Residents[0]},
	}
}

// AddUser registers credentials and the profile returned by /api/users/me.
func (s *Server) AddUser(identifier, password, docID, profile string) {
	s.Lock()
	defer s.Unlock()
	s.users[identifier] = user{password: password, docID: docID, profile: json.RawMessage(profile)}
}

// Fail makes every request whose path starts with prefix answer status.
func (s *Server) Fail(prefix string, status int) {
	s.Lock()
	defer s.Unlock()
	s.fail[prefix] = status
}

// Recover undoes every Fail.
func (s *Server) Recover() {
	s.Lock()
	defer s.Unlock()
	s.fail = make(map[string]int)
}

// Revoke invalidates every token issued for identifier.
func (s *Server) Revoke(identifier string) {
	s.Lock()
	defer s.Unlock()
	s.revoked[identifier] = true
}

// Token issues a token for identifier without going through the login endpoint.
func (s *Server) Token(identifier string) string {
	tok, _ := s.sign(identifier)
	return tok
}

func (s *Server) sign(identifier string) (string, error) {
	claims := jwt.StandardClaims{Subject: identifier, IssuedAt: time.Now().Unix()}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.failures)

	e.POST("/api/auth/local", s.login)

	api := e.Group("/api", s.authenticated)
	api.GET("/users/me", s.me)
	api.GET("/profile-residents", s.residents)
	api.GET("/programs", func(c echo.Context) error { return list(c, snapshot(s, s.Programs)) })
	api.GET("/program-statuses", func(c echo.Context) error { return list(c, snapshot(s, s.ProgramStatuses)) })
	api.GET("/reports", func(c echo.Context) error { return list(c, snapshot(s, s.Reports)) })
	api.GET("/resident-programs", s.residentPrograms)
	api.GET("/resident-fields", s.residentFields)
	api.POST("/resident-fields", s.createResidentField)
	api.PUT("/resident-fields/:id", s.updateResidentField)
	return e
}

// snapshot copies data under the server lock.
func snapshot[T any](s *Server, data []T) []T {
	s.Lock()
	defer s.Unlock()
	return append([]T{}, data...)
}

func strapiError(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{
		"data":  nil,
		"error": echo.Map{"status": status, "name": http.StatusText(status), "message": msg},
	})
}

func (s *Server) failures(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.Lock()
		status := 0
		for prefix, st := range s.fail {
			if strings.HasPrefix(c.Request().URL.Path, prefix) {
				status = st
			}
		}
		s.Unlock()
		if status != 0 {
			return strapiError(c, status, http.StatusText(status))
		}
		return next(c)
	}
}

func (s *Server) login(c echo.Context) error {
	var req cms.LoginRequest
	if err := c.Bind(&req); err != nil {
		return strapiError(c, http.StatusBadRequest, "Invalid payload")
	}
	s.Lock()
	u, ok := s.users[req.Identifier]
	delete(s.revoked, req.Identifier)
	s.Unlock()
	if !ok || u.password != req.Password {
		return strapiError(c, http.StatusBadRequest, "Invalid identifier or password")
	}
	tok, err := s.sign(req.Identifier)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"jwt": tok, "user": u.profile})
}

func (s *Server) authenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		claims := new(jwt.StandardClaims)
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		})
		if err != nil || !tok.Valid {
			return strapiError(c, http.StatusUnauthorized, "Missing or invalid credentials")
		}
		s.Lock()
		u, ok := s.users[claims.Subject]
		revoked := s.revoked[claims.Subject]
		s.Unlock()
		if !ok || revoked {
			return strapiError(c, http.StatusUnauthorized, "Missing or invalid credentials")
		}
		c.Set("user", u)
		return next(c)
	}
}

func (s *Server) me(c echo.Context) error {
	u := c.Get("user").(user)
	return c.JSONBlob(http.StatusOK, u.profile)
}

func list[T any](c echo.Context, data []T) error {
	p := pagination(c, len(data))
	return c.JSON(http.StatusOK, cms.Collection[T]{Data: data, Meta: cms.Meta{Pagination: &p}})
}

func pagination(c echo.Context, total int) cms.Pagination {
	page, _ := strconv.Atoi(c.QueryParam("pagination[page]"))
	size, _ := strconv.Atoi(c.QueryParam("pagination[pageSize]"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 25
	}
	return cms.Pagination{Page: page, PageSize: size, PageCount: (total + size - 1) / size, Total: total}
}

func (s *Server) residents(c echo.Context) error {
	docID := c.QueryParam("filters[documentId][$eq]")
	educator := c.QueryParam("filters[educator_user][documentId][$eq]")
	parent := c.QueryParam("filters[parent_users][documentId][$eq]")

	s.Lock()
	out := make([]cms.Resident, 0, len(s.Residents))
	for _, r := range s.Residents {
		if docID != "" && r.DocumentID != docID {
			continue
		}
		if educator != "" && !r.HasEducator(educator) {
			continue
		}
		if parent != "" && !r.HasParent(parent) {
			continue
		}
		out = append(out, r)
	}
	s.Unlock()
	return list(c, out)
}

func (s *Server) residentPrograms(c echo.Context) error {
	kid := c.QueryParam("filters[kid_profile][documentId][$eq]")
	s.Lock()
	out := append([]cms.ResidentProgram{}, s.ResidentPrograms[kid]...)
	s.Unlock()
	return c.JSON(http.StatusOK, echo.Map{"data": out, "meta": echo.Map{}})
}

func (s *Server) residentFields(c echo.Context) error {
	kid := c.QueryParam("filters[kid_profile][documentId][$eq]")
	parent := c.QueryParam("filters[kid_profile][parent_users][username][$in][0]")
	date := c.QueryParam("filters[activity_date][$eq]")

	s.Lock()
	var matched []cms.ResidentField
	for _, f := range s.Fields {
		if date != "" && f.ActivityDate != date {
			continue
		}
		if kid != "" && (f.KidProfile == nil || f.KidProfile.DocumentID != kid) {
			continue
		}
		if parent != "" && !s.kidHasParentUsername(f.KidProfile, parent) {
			continue
		}
		matched = append(matched, f)
	}
	p := pagination(c, len(matched))
	s.Unlock()

	start := (p.Page - 1) * p.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + p.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	page := make([]cms.ResidentField, 0, end-start)
	page = append(page, matched[start:end]...)
	return c.JSON(http.StatusOK, cms.Collection[cms.ResidentField]{Data: page, Meta: cms.Meta{Pagination: &p}})
}

func (s *Server) kidHasParentUsername(kid *cms.Resident, username string) bool {
	if kid == nil {
		return false
	}
	for _, r := range s.Residents {
		if r.DocumentID != kid.DocumentID {
			continue
		}
		for _, p := range r.ParentUsers {
			if p.Username == username {
				return true
			}
		}
	}
	return false
}

type fieldPayload struct {
	Data cms.ResidentFieldInput `json:"data"`
}

func (s *Server) fieldFrom(in cms.ResidentFieldInput, f cms.ResidentField) cms.ResidentField {
	f.ActivityDate = in.ActivityDate
	f.Comments = in.Comments
	f.ValidatedBy = in.ValidatedBy
	for i := range s.ProgramSkills {
		if s.ProgramSkills[i].DocumentID == in.ProgramSkill {
			sk := s.ProgramSkills[i]
			f.ProgramSkill = &sk
		}
	}
	for i := range s.ProgramStatuses {
		if s.ProgramStatuses[i].DocumentID == in.ProgramStatus {
			st := s.ProgramStatuses[i]
			f.ProgramStatus = &st
		}
	}
	if in.KidProfile != "" {
		f.KidProfile = &cms.Resident{DocumentID: in.KidProfile}
	}
	return f
}

func (s *Server) createResidentField(c echo.Context) error {
	var body fieldPayload
	if err := c.Bind(&body); err != nil {
		return strapiError(c, http.StatusBadRequest, "Invalid payload")
	}
	if body.Data.ProgramSkill == "" || body.Data.KidProfile == "" {
		return strapiError(c, http.StatusBadRequest, "program_skill and kid_profile are required")
	}

	s.Lock()
	s.nextID++
	f := s.fieldFrom(body.Data, cms.ResidentField{
		ID:         json.Number(strconv.Itoa(s.nextID)),
		DocumentID: fmt.Sprintf("field-%d", s.nextID),
	})
	s.Fields = append(s.Fields, f)
	s.Unlock()
	return c.JSON(http.StatusOK, cms.Single[cms.ResidentField]{Data: f})
}

func (s *Server) updateResidentField(c echo.Context) error {
	var body fieldPayload
	if err := c.Bind(&body); err != nil {
		return strapiError(c, http.StatusBadRequest, "Invalid payload")
	}

	s.Lock()
	defer s.Unlock()
	for i, f := range s.Fields {
		if f.DocumentID == c.Param("id") {
			s.Fields[i] = s.fieldFrom(body.Data, f)
			return c.JSON(http.StatusOK, cms.Single[cms.ResidentField]{Data: s.Fields[i]})
		}
	}
	return strapiError(c, http.StatusNotFound, "Not Found")
}
