package web

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/payables-dashboard/internal/dashboard"
	"github.com/dvloznov/payables-dashboard/internal/dashboard/mocks"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/dvloznov/payables-dashboard/internal/export"
	"github.com/dvloznov/payables-dashboard/internal/session"
	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHeader(t *testing.T) {
	tests := []struct {
		name     string
		opts     func(o *HeaderOptions)
		contains []string
		excludes []string
	}{
		{
			name:     "defaults",
			opts:     func(o *HeaderOptions) {},
			contains: []string{"ANÁLISE DE VENDAS", "justify-content: center", "hdr-divider", "#0c1c2a", "📊"},
			excludes: []string{"hdr-sub", "hdr-badge"},
		},
		{
			name: "subtitle and badge",
			opts: func(o *HeaderOptions) {
				o.Subtitle = "Período: Nov/2025"
				o.Badge = "Meta +12%"
			},
			contains: []string{`<div class="hdr-sub">Período: Nov/2025</div>`, "hdr-badge", "Meta &#43;12%"},
		},
		{
			name:     "right aligned",
			opts:     func(o *HeaderOptions) { o.Align = "right" },
			contains: []string{"justify-content: flex-end", "text-align: left"},
		},
		{
			name:     "unknown alignment centers",
			opts:     func(o *HeaderOptions) { o.Align = "diagonal" },
			contains: []string{"justify-content: center", "text-align: center"},
		},
		{
			name:     "light theme",
			opts:     func(o *HeaderOptions) { o.Theme = "light" },
			contains: []string{"#f5f9ff", "#0b1a29"},
			excludes: []string{"#0c1c2a"},
		},
		{
			name: "no icon no divider",
			opts: func(o *HeaderOptions) {
				o.Icon = ""
				o.ShowDivider = false
			},
			excludes: []string{"hdr-icon", "hdr-divider"},
		},
		{
			name:     "unsafe accent falls back",
			opts:     func(o *HeaderOptions) { o.Accent = "red;}body{display:none" },
			contains: []string{"--accent: #22d3ee"},
			excludes: []string{"display:none"},
		},
		{
			name:     "title is escaped",
			opts:     func(o *HeaderOptions) { o.Title = "<script>x</script>" },
			contains: []string{"&lt;script&gt;"},
			excludes: []string{"<script>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultHeader("ANÁLISE DE VENDAS")
			tt.opts(&o)

			var buf bytes.Buffer
			require.NoError(t, RenderHeader(&buf, o))
			out := buf.String()
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

type pageFixture struct {
	router *mux.Router
	source *mocks.MockSource
	svc    *dashboard.Service
}

func newPageFixture(t *testing.T) *pageFixture {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	svc := dashboard.NewService(source, session.NewRegistry(), dashboard.Options{}, zerolog.Nop())

	r := mux.NewRouter()
	NewHandler(svc, zerolog.Nop()).Register(r)
	return &pageFixture{router: r, source: source, svc: svc}
}

func (f *pageFixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (f *pageFixture) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *pageFixture) start(t *testing.T) string {
	rec := f.get("/")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/sessions/"), loc)
	return loc
}

var january = domain.DateRange{
	Start: civil.Date{Year: 2024, Month: 1, Day: 1},
	End:   civil.Date{Year: 2024, Month: 1, Day: 31},
}

func postings() *domain.Dataset {
	return domain.NewDataset([]domain.Row{
		{
			Codigo: "10", Historico: "PASSAGEM AEREA", Filial: "01", Conta: "4101", Competencia: "01/2024",
			Valor: decimal.NewNullDecimal(decimal.RequireFromString("1234.5")),
			Data:  domain.NullDate{Date: civil.Date{Year: 2024, Month: 1, Day: 15}, Valid: true},
		},
		{
			Codigo: "11", Historico: "HOTEL", Filial: "02", Conta: "4102", Competencia: "01/2024",
			Valor: decimal.NewNullDecimal(decimal.RequireFromString("365.5")),
		},
	})
}

func TestPage_EmptySession(t *testing.T) {
	f := newPageFixture(t)
	page := f.start(t)

	rec := f.get(page)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, Title)
	assert.Contains(t, body, "CARREGAR")
	assert.NotContains(t, body, "FILTRAR")
	assert.NotContains(t, body, "<table>")
}

func TestPage_LoadAndFilter(t *testing.T) {
	f := newPageFixture(t)
	page := f.start(t)

	f.source.EXPECT().FetchInvoices(gomock.Any(), january).Return(postings(), nil)

	rec := f.post(page+"/load", url.Values{"start_date": {"2024-01-01"}, "end_date": {"2024-01-31"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, page, rec.Header().Get("Location"))

	body := f.get(page).Body.String()
	assert.Contains(t, body, "2 registros carregados.")
	assert.Contains(t, body, "PASSAGEM AEREA")
	assert.Contains(t, body, "15/01/2024")
	assert.Contains(t, body, "1234.50")
	assert.Contains(t, body, "1.600,00")
	assert.Contains(t, body, `value="2024-01-01"`)
	assert.Contains(t, body, `href="`+page+`/export"`)
	assert.Contains(t, body, "Competência")

	// the notice is shown once
	assert.NotContains(t, f.get(page).Body.String(), "registros carregados.")

	rec = f.post(page+"/filter", url.Values{domain.ColFilial: {"02"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body = f.get(page).Body.String()
	assert.Contains(t, body, "1 registros exibidos.")
	assert.Contains(t, body, "HOTEL")
	assert.NotContains(t, body, "PASSAGEM AEREA")
	assert.Contains(t, body, `<option value="02" selected>`)
	assert.Contains(t, body, "365,50")
}

func TestPage_LoadFailureShowsError(t *testing.T) {
	f := newPageFixture(t)
	page := f.start(t)

	f.source.EXPECT().FetchInvoices(gomock.Any(), january).
		Return(nil, fmt.Errorf("FetchInvoices: connection refused: %w", domain.ErrDataUnavailable))

	rec := f.post(page+"/load", url.Values{"start_date": {"01/01/2024"}, "end_date": {"31/01/2024"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body := f.get(page).Body.String()
	assert.Contains(t, body, `class="flash error"`)
	assert.Contains(t, body, "connection refused")
	assert.NotContains(t, body, "<table>")
}

func TestPage_Export(t *testing.T) {
	f := newPageFixture(t)
	page := f.start(t)

	f.source.EXPECT().FetchInvoices(gomock.Any(), january).Return(postings(), nil)
	rec := f.post(page+"/load", url.Values{"start_date": {"01/01/2024"}, "end_date": {"31/01/2024"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = f.get(page + "/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), export.DefaultFilename)

	ds, err := export.Parse(rec.Body.Bytes(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestPage_ExportBeforeLoadShowsError(t *testing.T) {
	f := newPageFixture(t)
	page := f.start(t)

	rec := f.get(page + "/export")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, page, rec.Header().Get("Location"))

	body := f.get(page).Body.String()
	assert.Contains(t, body, `class="flash error"`)
	assert.Contains(t, body, "Carregue os dados primeiro.")
}

func TestPage_InvalidDates(t *testing.T) {
	f := newPageFixture(t)
	page := f.start(t)

	rec := f.post(page+"/load", url.Values{"start_date": {"2024-02-01"}, "end_date": {"2024-01-01"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body := f.get(page).Body.String()
	assert.Contains(t, body, `class="flash error"`)
	assert.Contains(t, body, "before start_date")
}

func TestPage_UnknownSessionRestarts(t *testing.T) {
	f := newPageFixture(t)

	rec := f.get("/sessions/expired")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = f.post("/sessions/expired/filter", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}
