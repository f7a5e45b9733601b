package httpapi

import (
	"context"
	"net/http"

	"utilisoft/backend/internal/domain"
)

func (a *API) handleSearchDebtors(w http.ResponseWriter, r *http.Request) {
	debtors, err := a.service.SearchDebtors(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debtors": debtors})
}

func (a *API) handleCreateDebtor(w http.ResponseWriter, r *http.Request) {
	var req domain.DebtorCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	debtor, err := a.service.CreateDebtor(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"debtor": debtor})
}

func (a *API) handleDeleteDebtor(w http.ResponseWriter, r *http.Request) {
	a.handleDelete(w, r, a.service.DeleteDebtor)
}

func (a *API) handleSearchVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := a.service.SearchVendors(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

func (a *API) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	var req domain.VendorCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	vendor, err := a.service.CreateVendor(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"vendor": vendor})
}

func (a *API) handleDeleteVendor(w http.ResponseWriter, r *http.Request) {
	a.handleDelete(w, r, a.service.DeleteVendor)
}

func (a *API) handleSearchWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := a.service.SearchWorkers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": workers})
}

func (a *API) handleCreateWorker(w http.ResponseWriter, r *http.Request) {
	var req domain.WorkerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	worker, err := a.service.CreateWorker(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"worker": worker})
}

func (a *API) handleDeleteWorker(w http.ResponseWriter, r *http.Request) {
	a.handleDelete(w, r, a.service.DeleteWorker)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request, remove func(ctx context.Context, id int64) error) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := remove(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": a.auth.ListUsers(r.Context())})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.auth.CreateUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}
