package controller

import (
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapslead/models"
)

// ProgressController streams job and campaign snapshots over websockets
// until the record reaches a terminal state.
type ProgressController struct {
	DB       *gorm.DB
	Logger   *logrus.Entry
	Interval time.Duration
}

func NewProgressController(db *gorm.DB, logger *logrus.Entry) *ProgressController {
	return &ProgressController{
		DB:       db,
		Logger:   logger,
		Interval: 500 * time.Millisecond,
	}
}

type snapshotLoader func(id, userID string) (snapshot interface{}, terminal bool, err error)

func (pc *ProgressController) StreamJob(c *websocket.Conn) {
	pc.stream(c, "Job not found", func(id, userID string) (interface{}, bool, error) {
		var job models.ScrapingJob
		if err := pc.DB.Where("id = ? AND user_id = ?", id, userID).First(&job).Error; err != nil {
			return nil, false, err
		}
		return job, job.IsTerminal(), nil
	})
}

func (pc *ProgressController) StreamCampaign(c *websocket.Conn) {
	pc.stream(c, "Campaign not found", func(id, userID string) (interface{}, bool, error) {
		var campaign models.EmailCampaign
		if err := pc.DB.Where("id = ? AND user_id = ?", id, userID).First(&campaign).Error; err != nil {
			return nil, false, err
		}
		return campaign, campaign.IsTerminal(), nil
	})
}

func (pc *ProgressController) stream(c *websocket.Conn, notFound string, load snapshotLoader) {
	defer c.Close()

	id := c.Params("id")
	userID, _ := c.Locals("userID").(string)
	log := pc.Logger.WithFields(logrus.Fields{"id": id, "user_id": userID})

	// a read pump so client close frames end the stream
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pc.Interval)
	defer ticker.Stop()

	for {
		snapshot, terminal, err := load(id, userID)
		if err != nil {
			msg := "Failed to load progress"
			if errors.Is(err, gorm.ErrRecordNotFound) {
				msg = notFound
			} else {
				log.WithError(err).Error("Progress stream lookup failed")
			}
			_ = c.WriteJSON(map[string]interface{}{"success": false, "message": msg, "data": nil})
			return
		}

		if err := c.WriteJSON(snapshot); err != nil {
			log.WithError(err).Debug("Progress stream closed by client")
			return
		}
		if terminal {
			return
		}

		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}
