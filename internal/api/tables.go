package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/evtop/evtop/internal/engine"
	"github.com/evtop/evtop/internal/table"
)

type tableInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Mode       string   `json:"mode"`
	RefreshNS  uint64   `json:"refresh_interval_ns"`
	Paused     bool     `json:"paused"`
	SortingCol uint32   `json:"sorting_col"`
	Columns    []string `json:"columns"`
}

func (s *Server) listTablesHandler(c *fiber.Ctx) error {
	infos := make([]tableInfo, 0, len(s.engine.Tables()))

	s.engine.Do(func() {
		for _, entry := range s.engine.Tables() {
			tbl := entry.Table

			info := tableInfo{
				ID:         entry.ID,
				Name:       entry.Name,
				Mode:       tbl.Mode().String(),
				RefreshNS:  tbl.RefreshInterval(),
				Paused:     tbl.Paused(),
				SortingCol: tbl.GetSortingCol(),
			}
			for _, fi := range tbl.Legend() {
				info.Columns = append(info.Columns, fi.Name)
			}

			infos = append(infos, info)
		}
	})

	return c.JSON(fiber.Map{"tables": infos})
}

func (s *Server) lookup(c *fiber.Ctx) (*engine.Entry, error) {
	entry, ok := s.engine.Lookup(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown table")
	}
	return entry, nil
}

func (s *Server) sampleHandler(c *fiber.Ctx) error {
	entry, err := s.lookup(c)
	if err != nil {
		return err
	}

	sample, ts := entry.LastSample()
	if sample == nil {
		sample = []table.RenderedRow{}
	}

	return c.JSON(fiber.Map{
		"table":    entry.Name,
		"flush_ts": ts,
		"rows":     sample,
	})
}

func (s *Server) pauseHandler(c *fiber.Ctx) error {
	return s.setPaused(c, true)
}

func (s *Server) resumeHandler(c *fiber.Ctx) error {
	return s.setPaused(c, false)
}

func (s *Server) setPaused(c *fiber.Ctx, paused bool) error {
	entry, err := s.lookup(c)
	if err != nil {
		return err
	}

	s.engine.Do(func() { entry.Table.SetPaused(paused) })

	s.logger.Info().Str("table", entry.Name).Bool("paused", paused).Msg("Pause state changed")
	return c.JSON(fiber.Map{"paused": paused})
}

func (s *Server) sortHandler(c *fiber.Ctx) error {
	entry, err := s.lookup(c)
	if err != nil {
		return err
	}

	var req struct {
		Col uint32 `json:"col"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var sortErr error
	s.engine.Do(func() { sortErr = entry.Table.SetSortingCol(req.Col) })

	if sortErr != nil {
		if errors.Is(sortErr, table.ErrInvalidSortingCol) {
			return fiber.NewError(fiber.StatusBadRequest, sortErr.Error())
		}
		return sortErr
	}

	return c.JSON(fiber.Map{"sorting_col": req.Col})
}

func (s *Server) filterHandler(c *fiber.Ctx) error {
	entry, err := s.lookup(c)
	if err != nil {
		return err
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	s.engine.Do(func() { entry.Table.SetFreetextFilter(req.Text) })

	return c.JSON(fiber.Map{"filter": req.Text})
}

func (s *Server) clearHandler(c *fiber.Ctx) error {
	entry, err := s.lookup(c)
	if err != nil {
		return err
	}

	if entry.Table.Mode() != table.ModeList {
		return fiber.NewError(fiber.StatusBadRequest, "clear is only valid for list tables")
	}

	s.engine.Do(func() { entry.Table.Clear() })

	return c.JSON(fiber.Map{"cleared": true})
}
