package geo

import (
	"context"
	"errors"
)

// Chain asks each provider in turn and returns the first answer. Every
// provider is asked even after ctx expires: network providers fail fast on a
// done context, and offline estimators still answer.
type Chain []Provider

// DistanceAndTime implements Provider.
func (c Chain) DistanceAndTime(ctx context.Context, origin, destination Location) (Route, error) {
	var errs []error
	for _, p := range c {
		r, err := p.DistanceAndTime(ctx, origin, destination)
		if err == nil {
			return r, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no providers configured"))
	}
	return Route{}, unavailable("geo.Chain.DistanceAndTime", errors.Join(errs...))
}
