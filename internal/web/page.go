// Package web serves the server-rendered dashboard page.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/dvloznov/payables-dashboard/internal/dashboard"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/dvloznov/payables-dashboard/internal/logger"
	"github.com/dvloznov/payables-dashboard/internal/session"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Title is the main heading of the dashboard.
const Title = "Fechamento da Fatura de Cartão Corporativo"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var filterLabels = map[string][2]string{
	domain.ColConta:       {"Conta", "Selecionar conta(s)"},
	domain.ColFilial:      {"Filial", "Selecionar filial"},
	domain.ColCompetencia: {"Competência", "Selecionar competência"},
}

// Handler renders the dashboard page and handles its forms.
type Handler struct {
	svc    *dashboard.Service
	header HeaderOptions
	log    zerolog.Logger
}

// NewHandler creates a page handler. The header's Icon is cleared, matching
// the plain title of the dashboard.
func NewHandler(svc *dashboard.Service, log zerolog.Logger) *Handler {
	header := DefaultHeader(Title)
	header.Icon = ""
	return &Handler{svc: svc, header: header, log: log}
}

// Register mounts the page routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/", h.Index).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", h.Page).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/load", h.Load).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/filter", h.Filter).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/export", h.Export).Methods(http.MethodGet)
}

type option struct {
	Value    string
	Selected bool
}

type filterField struct {
	Column      string
	Label       string
	Placeholder string
	Options     []option
}

type cell struct {
	Text    string
	Numeric bool
}

type pageData struct {
	Header    headerView
	Total     headerView
	View      *dashboard.View
	Notice    session.Notice
	Start     string
	End       string
	Filters   []filterField
	Columns   []string
	Rows      [][]cell
	LoadURL   string
	FilterURL string
	ExportURL string
}

func sessionPath(id string) string {
	return "/sessions/" + url.PathEscape(id)
}

// Index handles GET / by starting a session.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	sess := h.svc.NewSession(r.Context())
	http.Redirect(w, r, sessionPath(sess.ID), http.StatusSeeOther)
}

// Page handles GET /sessions/{id}
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := h.svc.Sessions().Get(id)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	notice := sess.TakeNotice()

	view, err := h.svc.View(r.Context(), id)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := h.pageData(view, notice)

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "page", data); err != nil {
		log := logger.FromContext(r.Context(), h.log)
		log.Error().Err(err).Str("session_id", id).Msg("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) pageData(view *dashboard.View, notice session.Notice) pageData {
	base := sessionPath(view.SessionID)

	total := DefaultHeader(dashboard.FormatAmount(view.Summary.Total))
	total.Icon = "💳"

	data := pageData{
		Header:    h.header.view(),
		Total:     total.view(),
		View:      view,
		Notice:    notice,
		Columns:   view.Dataset.Columns,
		LoadURL:   base + "/load",
		FilterURL: base + "/filter",
		ExportURL: base + "/export",
	}
	if !view.DateRange.IsZero() {
		data.Start = view.DateRange.Start.String()
		data.End = view.DateRange.End.String()
	}

	for _, col := range domain.FilterColumns {
		labels := filterLabels[col]
		field := filterField{Column: col, Label: labels[0], Placeholder: labels[1]}
		chosen := view.Selection[col]
		for _, v := range view.Options[col] {
			field.Options = append(field.Options, option{Value: v, Selected: slices.Contains(chosen, v)})
		}
		data.Filters = append(data.Filters, field)
	}

	data.Rows = make([][]cell, 0, view.Dataset.Len())
	for _, row := range view.Dataset.Rows {
		cells := make([]cell, len(data.Columns))
		for i, col := range data.Columns {
			cells[i] = displayCell(row, col)
		}
		data.Rows = append(data.Rows, cells)
	}
	return data
}

func displayCell(row domain.Row, col string) cell {
	switch col {
	case domain.ColValor:
		if !row.Valor.Valid {
			return cell{Numeric: true}
		}
		return cell{Text: row.Valor.Decimal.StringFixed(2), Numeric: true}
	case domain.ColData:
		if !row.Data.Valid {
			return cell{}
		}
		return cell{Text: dashboard.FormatDate(row.Data.Date)}
	default:
		v, _ := row.Value(col)
		return cell{Text: v}
	}
}

// Load handles POST /sessions/{id}/load
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	n, err := h.load(r)
	h.finish(w, r, id, err, fmt.Sprintf("%d registros carregados.", n))
}

func (h *Handler) load(r *http.Request) (int, error) {
	if err := r.ParseForm(); err != nil {
		return 0, fmt.Errorf("formulário inválido: %w", err)
	}
	rng, err := dashboard.ParseDateRange(r.PostFormValue("start_date"), r.PostFormValue("end_date"))
	if err != nil {
		return 0, err
	}
	return h.svc.Load(r.Context(), mux.Vars(r)["id"], &rng)
}

// Filter handles POST /sessions/{id}/filter
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	n, err := h.filter(r)
	h.finish(w, r, id, err, fmt.Sprintf("%d registros exibidos.", n))
}

func (h *Handler) filter(r *http.Request) (int, error) {
	if err := r.ParseForm(); err != nil {
		return 0, fmt.Errorf("formulário inválido: %w", err)
	}
	sel := domain.Selection{}
	for _, col := range domain.FilterColumns {
		if values := r.PostForm[col]; len(values) > 0 {
			sel[col] = values
		}
	}
	return h.svc.Filter(r.Context(), mux.Vars(r)["id"], sel)
}

// Export handles GET /sessions/{id}/export by sending the workbook. On
// failure the browser goes back to the page, which shows the error.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	dl, err := h.svc.Export(r.Context(), id)
	if err != nil {
		h.finish(w, r, id, err, "")
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	if _, err := w.Write(dl.Data); err != nil {
		log := logger.FromContext(r.Context(), h.log)
		log.Error().Err(err).Str("session_id", id).Msg("Failed to write export")
	}
}

// finish stores the outcome as a notice and sends the browser back to the page.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, id string, err error, okMsg string) {
	sess, getErr := h.svc.Sessions().Get(id)
	if getErr != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err != nil {
		sess.SetNotice(session.Notice{Message: userMessage(err), Error: true})
	} else {
		sess.SetNotice(session.Notice{Message: okMsg})
	}
	http.Redirect(w, r, sessionPath(id), http.StatusSeeOther)
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		return "Não foi possível obter os dados: " + err.Error()
	case errors.Is(err, domain.ErrNoData):
		return "Carregue os dados primeiro."
	case errors.Is(err, domain.ErrSerializationFailure):
		return "Não foi possível gerar o arquivo Excel: " + err.Error()
	case errors.Is(err, domain.ErrInvalidSelection):
		return "Filtro inválido: " + err.Error()
	default:
		return err.Error()
	}
}
