package routes

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/goccy/go-json"

	"github.com/mufaddal-lashkar/airtable-client/app"
	"github.com/mufaddal-lashkar/airtable-client/httpx"
	"github.com/mufaddal-lashkar/airtable-client/log"
	"github.com/mufaddal-lashkar/airtable-client/model"
)

// PublicGetFormById serves the schema the respondent page renders. No
// login required; the viewer runs the same visibility rules client-side
// on every answer change.
func PublicGetFormById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form, err := fetchForm(r.Context(), app.DB, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "public_get_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.public_get_form", err)
			return
		}

		render.JSON(w, r, form.Form)
	}
}

// PublicSubmitForm accepts a full answer set, revalidates it with the
// same evaluator the viewer uses — required-ness is checked only
// against currently visible questions, and answers belonging to hidden
// questions are stripped, whatever the client sent — then persists the
// response and forwards it into the connected Airtable table.
func PublicSubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			Answers map[string]any `json:"answers"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := fetchForm(r.Context(), app.DB, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "public_submit.get_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.public_submit.get_form", err)
			return
		}

		answers := model.AnswerSet{}
		for _, q := range form.Fields {
			raw, ok := body.Answers[q.Key]
			if !ok {
				continue
			}
			a, err := model.NormalizeAnswer(q, raw)
			if err != nil {
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "public_submit.answers", "%s", err)
				return
			}
			answers[q.Key] = a
		}

		err = model.ValidateSubmission(form.Form, answers)
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "public_submit.required", "%s", err)
			return
		}

		answers = model.SanitizeAnswers(form.Form, answers)
		answersJson, err := json.Marshal(answers)
		if err != nil {
			httpx.LogInternalError(w, "public_submit.encode_answers", err)
			return
		}

		submittedAt := time.Now()
		var responseId int
		err = app.QueryRowContext(r.Context(), `
			INSERT INTO response (form_id, submitted_at, answers)
			VALUES (?, ?, ?)
			RETURNING id`,
			formId,
			submittedAt,
			string(answersJson),
		).Scan(&responseId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_response", err)
			return
		}

		// Writing through to Airtable is best effort: the response is
		// already stored locally, and a missing or expired owner token
		// only costs the record id.
		recordId := pushToAirtable(app, r, form, answers)
		if recordId != "" {
			_, err = app.ExecContext(r.Context(), `
				UPDATE response SET airtable_record_id = ? WHERE id = ?`,
				recordId,
				responseId,
			)
			if err != nil {
				log.Errorf("db.update_response.record_id: %s", err)
			}
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":               responseId,
			"airtableRecordId": recordId,
		})
	}
}

func pushToAirtable(app app.App, r *http.Request, form ownedForm, answers model.AnswerSet) string {
	if form.AirtableBaseID == "" || form.AirtableTableID == "" {
		return ""
	}

	sess, err := app.Sessions.LatestForUser(r.Context(), form.Owner)
	if err != nil {
		log.Warnf("public_submit.airtable.owner_session: %s", err)
		return ""
	}
	if !sess.TokenExpiry.IsZero() && sess.TokenExpiry.Before(time.Now()) {
		log.Warnf("public_submit.airtable.token_expired: user %s", form.Owner)
		return ""
	}

	fields := recordFields(form.Form, answers)
	if len(fields) == 0 {
		return ""
	}

	recordId, err := app.Airtable.CreateRecord(r.Context(), sess.AccessToken, form.AirtableBaseID, form.AirtableTableID, fields)
	if err != nil {
		log.Warnf("public_submit.airtable.create_record: %s", err)
		return ""
	}
	return recordId
}

// recordFields shapes sanitized answers into Airtable cell values
// keyed by field id: lists for multi-selects, url attachment objects
// for attachment questions, plain strings otherwise.
func recordFields(form model.Form, answers model.AnswerSet) map[string]any {
	fields := make(map[string]any, len(answers))
	for _, q := range form.Fields {
		a, ok := answers[q.Key]
		if !ok || a.IsEmpty() {
			continue
		}

		switch q.Type {
		case model.MultiSelect:
			fields[q.AirtableFieldID] = a.Values()
		case model.Attachment:
			fields[q.AirtableFieldID] = []map[string]string{{"url": a.Value()}}
		default:
			fields[q.AirtableFieldID] = a.Value()
		}
	}
	return fields
}
