package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/manwarsd/dreamboard/internal/export"
)

// exportEDLHandler renders the story's selected clips as a CMX3600 edit
// decision list.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Stories.GetStory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		a := export.ClipsFromStory(st)
		if len(a.Clips) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "no scene has a selected video to export", "NOTHING_TO_EXPORT")
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Title+".edl"))
		if len(a.Unresolved) > 0 {
			nums := make([]string, len(a.Unresolved))
			for i, n := range a.Unresolved {
				nums[i] = strconv.Itoa(n)
			}
			w.Header().Set("X-Unresolved-Scenes", strings.Join(nums, ","))
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, export.GenerateEDL(a.Clips, a.Title, a.FrameRate))
	}
}
