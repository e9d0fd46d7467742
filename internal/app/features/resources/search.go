package resources

import (
	"net/http"

	"github.com/dalemusser/studyshare/internal/app/store/queries/resourcesearch"
	"github.com/dalemusser/studyshare/internal/app/system/jsonutil"
	"github.com/dalemusser/studyshare/internal/app/system/timeouts"
)

// ServeSearch filters, sorts and paginates resources. limit is capped at
// paging.MaxLimit (100) and the pagination block reports the capped value.
// GET /api/resources/search?searchText=&subject=&department=&semester=&teacher=&fileType=&uploadedBy=&tags=&sortBy=&page=&limit=
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	p := resourcesearch.ParseParams(r.URL.Query())

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "resource search")
	defer cancel()

	res, err := h.Search.Search(ctx, p)
	if err != nil {
		// ErrDataUnavailable and deadline errors alike: no partial page.
		h.ErrLog.LogServerError(w, r, "resource search failed", err, "Server error while searching resources")
		return
	}

	h.Metrics.ObserveSearch(p.SortBy, res.Pagination.Total)
	jsonutil.Write(w, http.StatusOK, res)
}
