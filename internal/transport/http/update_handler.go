// Copyright 2026 The NexusCentral Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nexuscentral/nexuscentral/internal/update"
)

// CheckForUpdate resolves whether a newer version exists for the caller.
// "Nothing newer" is 204, not an error.
func (h *Handler) CheckForUpdate(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("company_code")
	ver := r.URL.Query().Get("version")
	if code == "" || ver == "" {
		respondError(w, http.StatusBadRequest, "company_code and version are required")
		return
	}
	h.metrics.recordUpdateCheck(r.Context())

	info, err := h.updateService.CheckForUpdate(r.Context(), update.CheckRequest{
		Code:      code,
		Channel:   r.URL.Query().Get("channel"),
		Version:   ver,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, update.ErrNoUpdate) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// UpdateManifest serves the channel state as a static latest.yml document
// for clients that poll instead of calling the check API.
func (h *Handler) UpdateManifest(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("company_code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "company_code is required")
		return
	}

	if _, err := h.companyService.Lookup(r.Context(), code); err != nil {
		respondServiceError(w, r, err)
		return
	}

	doc, err := h.updateService.ManifestDocument(r.Context(), r.URL.Query().Get("channel"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

// DownloadUpdate redirects to the external artifact location. The control
// plane never hosts binaries itself.
func (h *Handler) DownloadUpdate(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("company_code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "company_code is required")
		return
	}

	location, err := h.updateService.ResolveDownload(r.Context(),
		code, chi.URLParam(r, "version"), getIPAddress(r), r.UserAgent())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, location, http.StatusFound)
}
