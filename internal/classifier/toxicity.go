package classifier

import "context"

// maxToxicityInput truncates model input to the usual transformer window.
const maxToxicityInput = 512

// ToxicityScore is one labelled prediction from the local model.
type ToxicityScore struct {
	Label      string
	Confidence float64
}

// Toxicity is the local toxicity/harassment capability. Score returns
// ok=false when the model is not loaded or scoring failed; callers must
// treat that as "no opinion".
type Toxicity interface {
	Score(ctx context.Context, text string) (ToxicityScore, bool)
}

// ToxicityFunc adapts a plain function to the Toxicity interface.
type ToxicityFunc func(ctx context.Context, text string) (ToxicityScore, bool)

// Score implements Toxicity.
func (f ToxicityFunc) Score(ctx context.Context, text string) (ToxicityScore, bool) {
	if len(text) > maxToxicityInput {
		text = text[:maxToxicityInput]
	}
	return f(ctx, text)
}

// Unavailable is the no-model default: it never offers an opinion.
func Unavailable() Toxicity {
	return ToxicityFunc(func(context.Context, string) (ToxicityScore, bool) {
		return ToxicityScore{}, false
	})
}
