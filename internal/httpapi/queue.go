package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"audiorack/internal/errs"
	"audiorack/internal/queue"
	"audiorack/internal/source"
)

// queueablePrimary returns the current primary source if it both
// advertises a queue (Capabilities().HasQueue) and is one of the two
// concrete variants that actually implement queue mutation (spec §4.7:
// FilePlayer and StreamingService). Other variants (SdrRadio, UsbLineIn)
// never reach here since their Capabilities().HasQueue is false.
func (s *Server) queueablePrimary() (source.Source, error) {
	p := s.registry.Primary()
	if p == nil {
		return nil, errs.New(errs.NotFound, "httpapi.queue", "no active primary source")
	}
	if !p.Capabilities().HasQueue {
		return nil, errs.New(errs.NotSupported, "httpapi.queue", "primary source has no queue")
	}
	return p, nil
}

func (s *Server) handleGetQueue(c echo.Context) error {
	p, err := s.queueablePrimary()
	if err != nil {
		return err
	}
	var items []queue.Item
	switch src := p.(type) {
	case *source.FilePlayer:
		items = src.GetQueue()
	case *source.StreamingService:
		items, err = src.GetQueue()
		if err != nil {
			return err
		}
	default:
		return errs.New(errs.NotSupported, "httpapi.GetQueue", "queue not supported for this source type")
	}
	out := make([]queueItemDto, len(items))
	for i, it := range items {
		out[i] = toQueueItemDto(it)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleAddToQueue(c echo.Context) error {
	p, err := s.queueablePrimary()
	if err != nil {
		return err
	}
	var req addToQueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	switch src := p.(type) {
	case *source.FilePlayer:
		item := queue.Item{
			ID:     req.Item.ID,
			Title:  req.Item.Title,
			Artist: req.Item.Artist,
			Album:  req.Item.Album,
		}
		if req.Item.DurationMs > 0 {
			d := msToDuration(req.Item.DurationMs)
			item.Duration = &d
		}
		src.AddToQueue(item, req.Position)
	case *source.StreamingService:
		if err := src.AddToQueue(req.Item.ID); err != nil {
			return err
		}
	default:
		return errs.New(errs.NotSupported, "httpapi.AddToQueue", "queue not supported for this source type")
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) handleRemoveFromQueue(c echo.Context) error {
	p, err := s.queueablePrimary()
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}
	switch src := p.(type) {
	case *source.FilePlayer:
		if err := src.RemoveFromQueue(idx); err != nil {
			return err
		}
	case *source.StreamingService:
		if err := src.RemoveFromQueue(idx); err != nil {
			return err
		}
	default:
		return errs.New(errs.NotSupported, "httpapi.RemoveFromQueue", "queue not supported for this source type")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearQueue(c echo.Context) error {
	p, err := s.queueablePrimary()
	if err != nil {
		return err
	}
	switch src := p.(type) {
	case *source.FilePlayer:
		src.ClearQueue()
	case *source.StreamingService:
		if err := src.ClearQueue(); err != nil {
			return err
		}
	default:
		return errs.New(errs.NotSupported, "httpapi.ClearQueue", "queue not supported for this source type")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMoveQueueItem(c echo.Context) error {
	p, err := s.queueablePrimary()
	if err != nil {
		return err
	}
	var req moveQueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	switch src := p.(type) {
	case *source.FilePlayer:
		if err := src.MoveQueueItem(req.From, req.To); err != nil {
			return err
		}
	case *source.StreamingService:
		if err := src.MoveQueueItem(req.From, req.To); err != nil {
			return err
		}
	default:
		return errs.New(errs.NotSupported, "httpapi.MoveQueueItem", "queue not supported for this source type")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleJumpToIndex(c echo.Context) error {
	p, err := s.queueablePrimary()
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}
	switch src := p.(type) {
	case *source.FilePlayer:
		if err := src.JumpToIndex(idx); err != nil {
			return err
		}
	case *source.StreamingService:
		if err := src.JumpToIndex(idx); err != nil {
			return err
		}
	default:
		return errs.New(errs.NotSupported, "httpapi.JumpToIndex", "queue not supported for this source type")
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Files (spec §6, FilePlayer-only) ---

type playFileRequest struct {
	SourceID string `json:"source_id"`
	Path     string `json:"path"`
}

type loadDirectoryRequest struct {
	SourceID string `json:"source_id"`
	Path     string `json:"path"`
}

func (s *Server) filePlayer(sourceID string) (*source.FilePlayer, error) {
	src, err := s.registry.Get(sourceID)
	if err != nil {
		return nil, err
	}
	fp, ok := src.(*source.FilePlayer)
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "httpapi.filePlayer", "source is not a FilePlayer: "+sourceID)
	}
	return fp, nil
}

func (s *Server) handlePlayFile(c echo.Context) error {
	var req playFileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	fp, err := s.filePlayer(req.SourceID)
	if err != nil {
		return err
	}
	if err := fp.LoadFile(req.Path); err != nil {
		return err
	}
	if err := s.registry.SetPrimaryAndPlay(req.SourceID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleLoadDirectory(c echo.Context) error {
	var req loadDirectoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	fp, err := s.filePlayer(req.SourceID)
	if err != nil {
		return err
	}
	if err := fp.LoadDirectory(req.Path); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
