package review

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
)

// step is one unit of a saga.
type step struct {
	name string
	skip bool
	run  func(ctx context.Context) error
}

// runSteps executes steps in order and stops at the first error, which the
// caller returns from its transaction so that every earlier write is rolled
// back. Cancellation is observed between steps only.
func (s *Service) runSteps(ctx context.Context, steps []step) error {
	for _, st := range steps {
		if st.skip {
			continue
		}
		if err := ctx.Err(); err != nil {
			return errors.NewDependencyFailureError("Operation cancelled before "+st.name, err)
		}

		stepCtx, span := s.tracer.Start(ctx, st.name)
		err := st.run(stepCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, st.name)
		}
		span.End()

		if err != nil {
			return err
		}
	}
	return nil
}
