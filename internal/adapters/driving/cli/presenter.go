package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// Presenter renders ranked recommendations as plain text.
type Presenter struct {
	w io.Writer
}

// NewPresenter creates a presenter writing to w.
func NewPresenter(w io.Writer) *Presenter {
	return &Presenter{w: w}
}

// Render prints the payload in rank order.
// MatchPercentage is printed as stored; an urgency bonus is shown as part of it.
func (p *Presenter) Render(payload *domain.ResultPayload) {
	if payload == nil || len(payload.Recommendations) == 0 {
		fmt.Fprintln(p.w, "No recommendations found.")
		return
	}

	fmt.Fprintf(p.w, "%d recommendations", len(payload.Recommendations))
	if payload.TotalFound > len(payload.Recommendations) {
		fmt.Fprintf(p.w, " (of %d found)", payload.TotalFound)
	}
	if payload.ProcessingTimeMs > 0 {
		fmt.Fprintf(p.w, " in %.1fs", float64(payload.ProcessingTimeMs)/1000)
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w)

	for i := range payload.Recommendations {
		p.renderOne(i+1, &payload.Recommendations[i])
	}
}

func (p *Presenter) renderOne(rank int, r *domain.Recommendation) {
	fmt.Fprintf(p.w, "[%d] %s  %s\n", rank, displayName(r), formatMatch(r))
	if r.Rationale != "" {
		fmt.Fprintf(p.w, "    %s\n", r.Rationale)
	}
	if r.PersonalizedReason != "" {
		fmt.Fprintf(p.w, "    Why you: %s\n", r.PersonalizedReason)
	}
	if len(r.Benefits) > 0 {
		fmt.Fprintf(p.w, "    Benefits: %s\n", strings.Join(r.Benefits, ", "))
	}
	for _, tip := range r.ContextualTips {
		fmt.Fprintf(p.w, "    Tip: %s\n", tip)
	}
	if r.Product != nil && r.Product.Website != "" {
		fmt.Fprintf(p.w, "    %s\n", r.Product.Website)
	}
	fmt.Fprintln(p.w)
}

func displayName(r *domain.Recommendation) string {
	if r.Product != nil && r.Product.Title != "" {
		return fmt.Sprintf("%s (%s)", r.Product.Title, r.ID)
	}
	return r.ID
}

func formatMatch(r *domain.Recommendation) string {
	_, bonus := r.MatchBreakdown()
	if bonus > 0 {
		return fmt.Sprintf("%s%% match (urgency +%s included)", trimFloat(r.MatchPercentage), trimFloat(bonus))
	}
	return fmt.Sprintf("%s%% match", trimFloat(r.MatchPercentage))
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", f), "0"), ".")
}
