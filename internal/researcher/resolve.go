package researcher

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/name"
)

// ErrUnparseableName is returned when a name yields no given/family pair.
var ErrUnparseableName = eris.New("researcher: name has no usable components")

// Coauthor is an author discovered through a publication's author list.
type Coauthor struct {
	Name        string
	ORCID       string
	Institution string
}

// Resolver maps coauthors and seeds onto researcher ids.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveCoauthor returns the researcher id for a coauthor. A known ORCID is
// authoritative: its holder is returned without looking at the name.
// Otherwise the name is parsed and the record found or created, and a
// supplied ORCID is attached (or proposed as a merge when already held).
func (r *Resolver) ResolveCoauthor(ctx context.Context, c Coauthor) (int64, error) {
	orcid := strings.TrimSpace(c.ORCID)
	if orcid != "" {
		holder, err := r.store.FindByORCID(ctx, orcid)
		if err != nil {
			return 0, eris.Wrap(err, "researcher: resolve coauthor by orcid")
		}
		if holder != nil {
			return holder.ID, nil
		}
	}

	p := name.Parse(c.Name)
	if p.Given == "" || p.Family == "" {
		return 0, eris.Wrapf(ErrUnparseableName, "researcher: coauthor %q", c.Name)
	}

	id, err := r.store.FindOrCreate(ctx, &Record{
		GivenName:   p.Given,
		FamilyName:  p.Family,
		MiddleNames: StringPtr(p.Middle),
		NameSuffix:  StringPtr(p.Suffix),
		Institution: StringPtr(c.Institution),
	})
	if err != nil {
		return 0, eris.Wrapf(err, "researcher: resolve coauthor %q", c.Name)
	}

	if orcid != "" {
		if _, err := r.store.StoreIdentifier(ctx, id, IdentifierInput{ORCID: orcid}); err != nil {
			zap.L().Warn("researcher: failed to attach coauthor orcid",
				zap.Int64("researcher_id", id),
				zap.String("orcid", orcid),
				zap.Error(err),
			)
		}
	}
	return id, nil
}
