package routes

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/goccy/go-json"

	"github.com/mufaddal-lashkar/airtable-client/airtable"
	"github.com/mufaddal-lashkar/airtable-client/app"
	"github.com/mufaddal-lashkar/airtable-client/httpx"
	"github.com/mufaddal-lashkar/airtable-client/log"
	"github.com/mufaddal-lashkar/airtable-client/model"
	"github.com/mufaddal-lashkar/airtable-client/routes/middlewares"
)

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middlewares.SessionFromContext(r.Context())

		form := model.Form{}
		err := render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		fillQuestionKeys(&form)
		if err := form.Validate(); err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "create_form.validate", "%s", err)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var formId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO form (owner_user_id, title, description, airtable_base_id, airtable_table_id)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id`,
			sess.UserID,
			form.Title,
			form.Description,
			form.AirtableBaseID,
			form.AirtableTableID,
		).Scan(&formId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form", err)
			return
		}

		err = replaceQuestions(r.Context(), tx, formId, form.Fields)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form.questions", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": formId,
		})
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middlewares.SessionFromContext(r.Context())

		rows, err := app.QueryContext(r.Context(), `
			SELECT f.id, f.version, f.title, f.description, f.airtable_base_id, f.airtable_table_id
			FROM form f
			WHERE f.owner_user_id = ?
			ORDER BY f.id`,
			sess.UserID,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.get_forms", err)
			return
		}
		defer rows.Close()

		forms := []model.Form{}
		for rows.Next() {
			f := model.Form{}
			err = rows.Scan(&f.ID, &f.Version, &f.Title, &f.Description, &f.AirtableBaseID, &f.AirtableTableID)
			if err != nil {
				httpx.LogInternalError(w, "db.get_forms.scan", err)
				return
			}

			forms = append(forms, f)
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func GetFormById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, form, ok := fetchOwnedForm(app, w, r)
		if !ok {
			return
		}

		render.JSON(w, r, form.Form)
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, existing, ok := fetchOwnedForm(app, w, r)
		if !ok {
			return
		}

		form := model.Form{}
		err := render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		fillQuestionKeys(&form)
		if err := form.Validate(); err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "update_form.validate", "%s", err)
			return
		}

		// the connected table is immutable once questions exist: a new
		// source would invalidate every field mapping
		if len(existing.Fields) > 0 &&
			(form.AirtableBaseID != existing.AirtableBaseID || form.AirtableTableID != existing.AirtableTableID) {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "update_form.source",
				"the connected Airtable table cannot change while the form has questions")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		err = replaceQuestions(r.Context(), tx, formId, form.Fields)
		if err != nil {
			httpx.LogInternalError(w, "db.update_form.questions", err)
			return
		}

		res, err := tx.ExecContext(r.Context(), `
			UPDATE form
			SET
				title = ?,
				description = ?,
				airtable_base_id = ?,
				airtable_table_id = ?,
				version = version+1
			WHERE	id = ?
				AND version = ?`,
			form.Title,
			form.Description,
			form.AirtableBaseID,
			form.AirtableTableID,
			formId,
			form.Version,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.update_form", err)
			return
		}
		// optimistic lock
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.update_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.update_form.verify.conflict")
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.update_form.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middlewares.SessionFromContext(r.Context())

		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		res, err := app.ExecContext(r.Context(), `
			DELETE FROM form
			WHERE id = ?
				AND owner_user_id = ?`,
			formId,
			sess.UserID,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_form", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, "delete_form", formId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// AddQuestion maps one Airtable field from the builder's picker into a
// question appended to the form. Unsupported native types are rejected
// without touching the schema.
func AddQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, form, ok := fetchOwnedForm(app, w, r)
		if !ok {
			return
		}

		field := airtable.Field{}
		err := render.DecodeJSON(r.Body, &field)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		updated, question, err := form.AddQuestion(model.SourceField{
			ID:      field.ID,
			Name:    field.Name,
			Type:    field.Type,
			Choices: field.ChoiceNames(),
		})
		if err != nil {
			logSchemaError(w, "add_question", err)
			return
		}

		if !saveQuestions(app, w, r, formId, updated.Fields) {
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, question)
	}
}

// RemoveQuestion drops a question; rules on later questions that
// depended on it are dropped with it.
func RemoveQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, form, ok := fetchOwnedForm(app, w, r)
		if !ok {
			return
		}

		key := chi.URLParam(r, "key")
		if !hasQuestion(form.Form, key) {
			httpx.LogNotFound(w, "remove_question", key)
			return
		}

		updated := form.RemoveQuestion(key)
		if !saveQuestions(app, w, r, formId, updated.Fields) {
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// RuleTargetCandidates lists the questions a new rule on the given
// question may reference: exactly those before it in form order. The
// builder's picker renders this list verbatim.
func RuleTargetCandidates(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, form, ok := fetchOwnedForm(app, w, r)
		if !ok {
			return
		}

		key := chi.URLParam(r, "key")
		if !hasQuestion(form.Form, key) {
			httpx.LogNotFound(w, "rule_targets", key)
			return
		}

		candidates := form.RuleTargetCandidates(key)
		if candidates == nil {
			candidates = []model.Question{}
		}
		render.JSON(w, r, map[string]any{
			"candidates": candidates,
		})
	}
}

func AddRule(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, form, ok := fetchOwnedForm(app, w, r)
		if !ok {
			return
		}

		key := chi.URLParam(r, "key")
		if !hasQuestion(form.Form, key) {
			httpx.LogNotFound(w, "add_rule", key)
			return
		}

		rule := model.Rule{}
		err := render.DecodeJSON(r.Body, &rule)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		updated, err := form.AddRule(key, rule)
		if err != nil {
			logSchemaError(w, "add_rule", err)
			return
		}

		if !saveQuestions(app, w, r, formId, updated.Fields) {
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, updated.Fields)
	}
}

func ReorderQuestions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, form, ok := fetchOwnedForm(app, w, r)
		if !ok {
			return
		}

		var body struct {
			Order []string `json:"order"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		updated, err := form.Reorder(body.Order)
		if err != nil {
			logSchemaError(w, "reorder_questions", err)
			return
		}

		if !saveQuestions(app, w, r, formId, updated.Fields) {
			return
		}

		render.JSON(w, r, updated.Fields)
	}
}

func GetFormResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, _, ok := fetchOwnedForm(app, w, r)
		if !ok {
			return
		}

		responses, err := fetchResponses(r.Context(), app.DB, formId)
		if err != nil {
			httpx.LogInternalError(w, "db.get_responses", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"responses": responses,
		})
	}
}

// ExportFormResponses serves the same data as GetFormResponses as a
// JSON file download, mirroring the dashboard's export button.
func ExportFormResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, _, ok := fetchOwnedForm(app, w, r)
		if !ok {
			return
		}

		responses, err := fetchResponses(r.Context(), app.DB, formId)
		if err != nil {
			httpx.LogInternalError(w, "db.export_responses", err)
			return
		}

		w.Header().Set("Content-Disposition", `attachment; filename="responses-`+strconv.Itoa(formId)+`.json"`)
		render.JSON(w, r, responses)
	}
}

type ownedForm struct {
	model.Form
	Owner string
}

// fetchOwnedForm loads the form addressed by the id URL parameter and
// checks it belongs to the session user, writing the error response
// itself when it does not.
func fetchOwnedForm(app app.App, w http.ResponseWriter, r *http.Request) (int, ownedForm, bool) {
	sess := middlewares.SessionFromContext(r.Context())

	formId, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
		return 0, ownedForm{}, false
	}

	form, err := fetchForm(r.Context(), app.DB, formId)
	if errors.Is(err, sql.ErrNoRows) {
		httpx.LogNotFound(w, "get_form", formId)
		return 0, ownedForm{}, false
	}
	if err != nil {
		httpx.LogInternalError(w, "db.get_form", err)
		return 0, ownedForm{}, false
	}
	// hide other users' forms entirely
	if form.Owner != sess.UserID {
		httpx.LogNotFound(w, "get_form.owner", formId)
		return 0, ownedForm{}, false
	}

	return formId, form, true
}

func fetchForm(ctx context.Context, db *sql.DB, formId int) (form ownedForm, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT f.id, f.owner_user_id, f.version, f.title, f.description, f.airtable_base_id, f.airtable_table_id
		FROM form f
		WHERE f.id = ?`,
		formId,
	).Scan(&form.ID, &form.Owner, &form.Version, &form.Title, &form.Description, &form.AirtableBaseID, &form.AirtableTableID)
	if err != nil {
		return
	}

	rows, err := db.QueryContext(ctx, `
		SELECT q.question_key, q.airtable_field_id, q.label, q.type, q.required, q.options, q.rules
		FROM form_question q
		WHERE q.form_id = ?
		ORDER BY q.position`,
		formId,
	)
	if err != nil {
		return
	}
	defer rows.Close()

	form.Fields = []model.Question{}
	for rows.Next() {
		q := model.Question{}
		var opts, rules string
		err = rows.Scan(&q.Key, &q.AirtableFieldID, &q.Label, &q.Type, &q.Required, &opts, &rules)
		if err != nil {
			return
		}

		if opts != "" {
			err = json.Unmarshal([]byte(opts), &q.Options)
			if err != nil {
				return
			}
		}
		q.Rules = []model.Rule{}
		if rules != "" {
			err = json.Unmarshal([]byte(rules), &q.Rules)
			if err != nil {
				return
			}
		}

		form.Fields = append(form.Fields, q)
	}
	err = rows.Err()
	return
}

// replaceQuestions rewrites the form's question rows in form order.
func replaceQuestions(ctx context.Context, tx *sql.Tx, formId int, fields []model.Question) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM form_question
		WHERE form_id = ?`,
		formId,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO form_question (form_id, position, question_key, airtable_field_id, label, type, required, options, rules)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, q := range fields {
		optsJson, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		rulesJson, err := json.Marshal(q.Rules)
		if err != nil {
			return err
		}

		_, err = stmt.ExecContext(ctx, formId, i, q.Key, q.AirtableFieldID, q.Label, q.Type, q.Required, string(optsJson), string(rulesJson))
		if err != nil {
			return err
		}
	}
	return nil
}

// saveQuestions persists a builder edit in its own transaction and
// bumps the form version. Writes the error response itself on failure.
func saveQuestions(app app.App, w http.ResponseWriter, r *http.Request, formId int, fields []model.Question) bool {
	tx, err := app.BeginTx(r.Context(), nil)
	if err != nil {
		httpx.LogInternalError(w, "db.begin_tx", err)
		return false
	}
	defer tx.Rollback()

	err = replaceQuestions(r.Context(), tx, formId, fields)
	if err != nil {
		httpx.LogInternalError(w, "db.save_questions", err)
		return false
	}

	_, err = tx.ExecContext(r.Context(), `
		UPDATE form SET version = version+1 WHERE id = ?`,
		formId,
	)
	if err != nil {
		httpx.LogInternalError(w, "db.save_questions.version", err)
		return false
	}

	err = tx.Commit()
	if err != nil {
		httpx.LogInternalError(w, "db.save_questions.commit", err)
		return false
	}
	return true
}

func fetchResponses(ctx context.Context, db *sql.DB, formId int) ([]model.Response, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.submitted_at, r.airtable_record_id, r.answers
		FROM response r
		WHERE r.form_id = ?
		ORDER BY r.submitted_at`,
		formId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	responses := []model.Response{}
	for rows.Next() {
		resp := model.Response{}
		var answers string
		err = rows.Scan(&resp.ID, &resp.SubmittedAt, &resp.AirtableRecordID, &answers)
		if err != nil {
			return nil, err
		}

		err = json.Unmarshal([]byte(answers), &resp.Answers)
		if err != nil {
			return nil, err
		}

		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

func hasQuestion(form model.Form, key string) bool {
	for _, q := range form.Fields {
		if q.Key == key {
			return true
		}
	}
	return false
}

func fillQuestionKeys(form *model.Form) {
	for i := range form.Fields {
		if form.Fields[i].Key == "" {
			form.Fields[i].Key = model.NewQuestionKey()
		}
	}
}

// logSchemaError maps the model's sentinel errors onto 400s with the
// model's message; anything else is a genuine server fault.
func logSchemaError(w http.ResponseWriter, code string, err error) {
	switch {
	case errors.Is(err, model.ErrUnsupportedFieldType),
		errors.Is(err, model.ErrInvalidRuleTarget),
		errors.Is(err, model.ErrOrderViolation):
		httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, code, "%s", err)
	default:
		httpx.LogInternalError(w, code, err)
	}
}
