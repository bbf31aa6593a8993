package webapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campuskit/faceroll/internal/datastore"
)

// personResponse is the wire shape of one roster entry. The embedding
// bytes stay server-side; clients only learn whether enrollment is
// complete.
type personResponse struct {
	ID       uint   `json:"id"`
	RegNo    string `json:"reg_no"`
	Name     string `json:"name"`
	Group    string `json:"group,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
	HasPhoto bool   `json:"has_photo"`
	Enrolled bool   `json:"enrolled"`
}

func toPersonResponse(p *datastore.Person) personResponse {
	return personResponse{
		ID:       p.ID,
		RegNo:    p.RegNo,
		Name:     p.Name,
		Group:    p.GroupTag,
		Mobile:   p.Mobile,
		HasPhoto: p.PhotoPath != "",
		Enrolled: p.HasEmbedding(),
	}
}

// GetPeople lists the roster. ?group= narrows to one tag, ?search=
// matches name or registration number; the filters are exclusive and
// group wins.
func (c *Controller) GetPeople(ctx echo.Context) error {
	var (
		people []datastore.Person
		err    error
	)
	reqCtx := ctx.Request().Context()
	switch {
	case ctx.QueryParam("group") != "":
		people, err = c.store.ListGroup(reqCtx, ctx.QueryParam("group"))
	case ctx.QueryParam("search") != "":
		people, err = c.store.SearchPeople(reqCtx, ctx.QueryParam("search"))
	default:
		people, err = c.store.ListPeople(reqCtx)
	}
	if err != nil {
		return c.HandleError(ctx, err, "failed to list people", http.StatusInternalServerError)
	}

	resp := make([]personResponse, 0, len(people))
	for i := range people {
		resp = append(resp, toPersonResponse(&people[i]))
	}
	return ctx.JSON(http.StatusOK, resp)
}

// GetGroups lists the distinct group tags on the roster.
func (c *Controller) GetGroups(ctx echo.Context) error {
	groups, err := c.store.DistinctGroups(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "failed to list groups", http.StatusInternalServerError)
	}
	if groups == nil {
		groups = []string{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

// attendanceListResponse wraps attendance entries with the range they
// cover.
type attendanceListResponse struct {
	Date    string                      `json:"date,omitempty"`
	Start   string                      `json:"start,omitempty"`
	End     string                      `json:"end,omitempty"`
	Count   int                         `json:"count"`
	Entries []datastore.AttendanceEntry `json:"entries"`
}

// GetAttendanceToday lists the marks committed today.
func (c *Controller) GetAttendanceToday(ctx echo.Context) error {
	date := datastore.Today()
	entries, err := c.store.AttendanceOn(ctx.Request().Context(), date)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list attendance", http.StatusInternalServerError)
	}
	if entries == nil {
		entries = []datastore.AttendanceEntry{}
	}
	return ctx.JSON(http.StatusOK, attendanceListResponse{
		Date:    date,
		Count:   len(entries),
		Entries: entries,
	})
}

// GetAttendance lists marks for a date range. ?start and ?end take
// 2006-01-02 dates; end defaults to start, and both default to today.
func (c *Controller) GetAttendance(ctx echo.Context) error {
	start := ctx.QueryParam("start")
	end := ctx.QueryParam("end")
	if start == "" {
		start = datastore.Today()
	}
	if end == "" {
		end = start
	}
	for _, date := range []string{start, end} {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			return c.HandleError(ctx, err, "dates must be YYYY-MM-DD", http.StatusBadRequest)
		}
	}
	if end < start {
		return c.HandleError(ctx, nil, "end must not be before start", http.StatusBadRequest)
	}

	entries, err := c.store.AttendanceBetween(ctx.Request().Context(), start, end)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list attendance", http.StatusInternalServerError)
	}
	if entries == nil {
		entries = []datastore.AttendanceEntry{}
	}
	return ctx.JSON(http.StatusOK, attendanceListResponse{
		Start:   start,
		End:     end,
		Count:   len(entries),
		Entries: entries,
	})
}
