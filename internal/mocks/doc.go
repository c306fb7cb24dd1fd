// Package mocks provides shared test doubles for the interfaces used across
// the application.
//
// The generator and store mocks are safe for concurrent use, which lets the
// regeneration and service tests drive several runs at once. Behaviour is
// overridden through function fields:
//
//	gen := mocks.NewMockGenerator("Morning: ", "write the report")
//	plans := mocks.NewMockPlanStore()
//	plans.UpdateTextFn = func(ctx context.Context, id uuid.UUID, text string) error {
//	    return errors.New("disk full")
//	}
package mocks
