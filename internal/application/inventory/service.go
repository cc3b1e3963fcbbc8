package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/application"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

const inventoryService = "inventory-service"

// Service is the single entry point for every catalog mutation. Each call
// works against a fresh read of the store; nothing is cached between calls.
type Service struct {
	repo      dominv.Repository
	publisher domoutbox.Publisher
	in        application.Instruments
}

func NewService(repo dominv.Repository, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	if publisher == nil {
		publisher = domoutbox.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		in:        application.NewInstruments(tel, inventoryService),
	}
}

func (s *Service) ImportJSON(ctx context.Context, cmd ImportJSONCommand) (res dominv.MergeResult, err error) {
	ctx, run := s.in.Begin(ctx, "inventory.import_json", "ImportJSON",
		[]observability.Field{observability.F("actor_id", cmd.ActorID)})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return res, err
	}
	incoming, err := dominv.Decode(cmd.Data)
	if err != nil {
		run.Fail("VALIDATION")
		return res, application.NewValidation(err.Error())
	}
	err = s.repo.Update(ctx, func(c dominv.Catalog) error {
		res = c.Merge(incoming)
		return nil
	})
	if err != nil {
		run.Fail("REPOSITORY")
		return res, application.WrapRepository(err)
	}
	run.Note(observability.F("created", len(res.Created)), observability.F("conflicts", len(res.Conflicts)))
	s.changed(ctx, cmd.ActorID, "import_json", fmt.Sprintf("%d categorias", len(incoming)))
	return res, nil
}

func (s *Service) ImportLines(ctx context.Context, cmd ImportLinesCommand) (res ImportLinesResult, err error) {
	ctx, run := s.in.Begin(ctx, "inventory.import_lines", "ImportLines",
		[]observability.Field{observability.F("actor_id", cmd.ActorID)})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return res, err
	}
	incoming, stats := dominv.ClassifyLines(cmd.Text)
	res.Stats = stats
	err = s.repo.Update(ctx, func(c dominv.Catalog) error {
		res.Merge = c.Merge(incoming)
		return nil
	})
	if err != nil {
		run.Fail("REPOSITORY")
		return res, application.WrapRepository(err)
	}
	run.Note(
		observability.F("cards", stats.Cards),
		observability.F("accounts", stats.Accounts),
		observability.F("gifts", stats.Gifts),
		observability.F("skipped", stats.Skipped),
	)
	s.changed(ctx, cmd.ActorID, "import_lines",
		fmt.Sprintf("%d cartões, %d contas, %d gifts", stats.Cards, stats.Accounts, stats.Gifts))
	return res, nil
}

func (s *Service) AddItems(ctx context.Context, cmd AddItemsCommand) (res AddItemsResult, err error) {
	ctx, run := s.in.Begin(ctx, "inventory.add_items", "AddItems",
		[]observability.Field{observability.F("actor_id", cmd.ActorID), observability.F("kind", cmd.Kind)})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return res, err
	}
	kind, err := dominv.ParseKind(cmd.Kind)
	if err != nil {
		run.Fail("VALIDATION")
		return res, application.NewValidation(err.Error())
	}
	price, err := dominv.ParseMoney(cmd.Price)
	if err != nil {
		run.Fail("INVALID_PRICE")
		return res, err
	}
	name := dominv.CategoryName(kind, cmd.Label)
	items := dominv.ParseItems(name, kind, cmd.Lines)
	if len(items) == 0 {
		run.Fail("VALIDATION")
		return res, application.NewValidation("no valid lines")
	}

	err = s.repo.Update(ctx, func(c dominv.Catalog) error {
		cat := c.Ensure(name, kind)
		if err := cat.Add(items...); err != nil {
			return err
		}
		p := price
		cat.Price = &p
		res = AddItemsResult{Category: name, Added: len(items), Stock: cat.Count(), Price: price}
		return nil
	})
	if errors.Is(err, dominv.ErrKindMismatch) {
		run.Fail("KIND_MISMATCH")
		return res, application.NewValidation(err.Error())
	}
	if err != nil {
		run.Fail("REPOSITORY")
		return res, application.WrapRepository(err)
	}
	run.Note(observability.F("category", name), observability.F("added", res.Added))
	s.changed(ctx, cmd.ActorID, "add_items", fmt.Sprintf("%s +%d a %s", name, res.Added, price.BRL()))
	return res, nil
}

func (s *Service) SetPrice(ctx context.Context, cmd SetPriceCommand) (err error) {
	ctx, run := s.in.Begin(ctx, "inventory.set_price", "SetPrice",
		[]observability.Field{observability.F("actor_id", cmd.ActorID), observability.F("category", cmd.Category)})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return err
	}
	price, err := dominv.ParseMoney(cmd.Price)
	if err != nil {
		run.Fail("INVALID_PRICE")
		return err
	}
	err = s.repo.Update(ctx, func(c dominv.Catalog) error {
		cat, ok := c[cmd.Category]
		if !ok {
			return fmt.Errorf("%w: %s", dominv.ErrCategoryNotFound, cmd.Category)
		}
		cat.Price = &price
		return nil
	})
	if err = s.mapUpdateErr(run, err); err != nil {
		return err
	}
	s.changed(ctx, cmd.ActorID, "set_price", fmt.Sprintf("%s = %s", cmd.Category, price.BRL()))
	return nil
}

func (s *Service) DeleteCategory(ctx context.Context, cmd DeleteCategoryCommand) (err error) {
	ctx, run := s.in.Begin(ctx, "inventory.delete_category", "DeleteCategory",
		[]observability.Field{observability.F("actor_id", cmd.ActorID), observability.F("category", cmd.Category)})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return err
	}
	err = s.repo.Update(ctx, func(c dominv.Catalog) error {
		if _, ok := c[cmd.Category]; !ok {
			return fmt.Errorf("%w: %s", dominv.ErrCategoryNotFound, cmd.Category)
		}
		delete(c, cmd.Category)
		return nil
	})
	if err = s.mapUpdateErr(run, err); err != nil {
		return err
	}
	s.changed(ctx, cmd.ActorID, "delete_category", cmd.Category)
	return nil
}

func (s *Service) Clear(ctx context.Context, cmd ClearCommand) (err error) {
	ctx, run := s.in.Begin(ctx, "inventory.clear", "Clear",
		[]observability.Field{observability.F("actor_id", cmd.ActorID)})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return err
	}
	if err = s.repo.Write(ctx, dominv.Catalog{}); err != nil {
		run.Fail("REPOSITORY")
		return application.WrapRepository(err)
	}
	s.changed(ctx, cmd.ActorID, "clear", "estoque zerado")
	return nil
}

// Export returns the persisted representation of the current catalog.
func (s *Service) Export(ctx context.Context) (out []byte, err error) {
	ctx, run := s.in.Begin(ctx, "inventory.export", "Export", nil)
	defer run.End(&err)

	c, err := s.read(ctx, run)
	if err != nil {
		return nil, err
	}
	return dominv.Encode(c)
}

// Snapshot returns per-category stock. A corrupt store is reported as an
// empty catalog with a warning rather than an error.
func (s *Service) Snapshot(ctx context.Context) (out []dominv.Summary, err error) {
	ctx, run := s.in.Begin(ctx, "inventory.snapshot", "Snapshot", nil)
	defer run.End(&err)

	c, err := s.read(ctx, run)
	if err != nil {
		return nil, err
	}
	return c.Summaries(), nil
}

// Category returns a detached copy of one category.
func (s *Service) Category(ctx context.Context, name string) (*dominv.Category, error) {
	c, err := s.repo.Read(ctx)
	if errors.Is(err, dominv.ErrCorruptStore) {
		return nil, fmt.Errorf("%w: %s", dominv.ErrCategoryNotFound, name)
	}
	if err != nil {
		return nil, application.WrapRepository(err)
	}
	cat, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dominv.ErrCategoryNotFound, name)
	}
	return cat.Clone(), nil
}

func (s *Service) SearchCards(ctx context.Context, cmd SearchCommand) (out []dominv.CardListing, err error) {
	ctx, run := s.in.Begin(ctx, "inventory.search_cards", "SearchCards",
		[]observability.Field{observability.F("actor_id", cmd.ActorID), observability.F("field", cmd.Field)},
		attribute.String("search.field", cmd.Field))
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return nil, err
	}
	field, err := dominv.ParseSearchField(cmd.Field)
	if err != nil {
		run.Fail("VALIDATION")
		return nil, application.NewValidation(err.Error())
	}
	c, err := s.read(ctx, run)
	if err != nil {
		return nil, err
	}
	out = dominv.FilterCards(c.Cards(), field, cmd.Value)
	run.Note(observability.F("results", len(out)))

	s.in.Publish(ctx, s.publisher, dominv.SearchPerformedEvent{
		ActorID:    cmd.ActorID,
		ActorTag:   cmd.ActorTag,
		Field:      field,
		Term:       strings.TrimSpace(cmd.Value),
		Results:    len(out),
		OccurredAt: time.Now().UTC(),
	})
	return out, nil
}

// RemoveItem deletes one unit by identifier. An absent category or unit is a
// logged no-op reported through removed=false, never an error.
func (s *Service) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (item dominv.Item, removed bool, err error) {
	ctx, run := s.in.Begin(ctx, "inventory.remove_item", "RemoveItem",
		[]observability.Field{observability.F("category", cmd.Category), observability.F("kind", string(cmd.Kind))})
	defer run.End(&err)

	if err = application.Validate(cmd); err != nil {
		run.Fail("VALIDATION")
		return item, false, err
	}
	err = s.repo.Update(ctx, func(c dominv.Catalog) error {
		cat, ok := c[cmd.Category]
		if !ok {
			return nil
		}
		item, removed = cat.Remove(cmd.ItemID)
		return nil
	})
	if err != nil {
		run.Fail("REPOSITORY")
		return item, false, application.WrapRepository(err)
	}
	if !removed {
		run.Fail("NOT_FOUND")
		run.Logger().Warn("inventory_removal_missed",
			observability.F("category", cmd.Category),
			observability.F("reason", cmd.Reason),
		)
		s.in.Publish(ctx, s.publisher, dominv.NewRemovalMissedEvent(cmd.Category, cmd.Kind, cmd.ItemID, cmd.Reason))
	}
	return item, removed, nil
}

// Take removes and returns the next unit of category in one atomic step,
// skipping a unit whose identifier equals exclude. It fails with
// ErrCategoryNotFound or ErrNoStock.
func (s *Service) Take(ctx context.Context, category, exclude string) (item dominv.Item, err error) {
	ctx, run := s.in.Begin(ctx, "inventory.take", "Take",
		[]observability.Field{observability.F("category", category)})
	defer run.End(&err)

	err = s.repo.Update(ctx, func(c dominv.Catalog) error {
		cat, ok := c[category]
		if !ok {
			return fmt.Errorf("%w: %s", dominv.ErrCategoryNotFound, category)
		}
		next, ok := cat.First()
		if exclude != "" {
			next, ok = cat.Alternative(exclude)
		}
		if !ok {
			return fmt.Errorf("%w: %s", dominv.ErrNoStock, category)
		}
		item, _ = cat.Remove(next.ID())
		return nil
	})
	switch {
	case errors.Is(err, dominv.ErrCategoryNotFound):
		run.Fail("CATEGORY_NOT_FOUND")
		return item, err
	case errors.Is(err, dominv.ErrNoStock):
		run.Fail("NO_STOCK")
		return item, err
	case err != nil:
		run.Fail("REPOSITORY")
		return item, application.WrapRepository(err)
	}
	return item, nil
}

func (s *Service) read(ctx context.Context, run *application.Run) (dominv.Catalog, error) {
	c, err := s.repo.Read(ctx)
	if errors.Is(err, dominv.ErrCorruptStore) {
		run.Note(observability.F("degraded", true))
		run.Logger().Warn("inventory_store_corrupt", observability.Err(err))
		return dominv.Catalog{}, nil
	}
	if err != nil {
		run.Fail("REPOSITORY")
		return nil, application.WrapRepository(err)
	}
	return c, nil
}

func (s *Service) mapUpdateErr(run *application.Run, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dominv.ErrCategoryNotFound):
		run.Fail("CATEGORY_NOT_FOUND")
		return err
	default:
		run.Fail("REPOSITORY")
		return application.WrapRepository(err)
	}
}

func (s *Service) changed(ctx context.Context, actorID, action, command string) {
	s.in.Publish(ctx, s.publisher, dominv.NewCatalogChangedEvent(actorID, action, command))
}
