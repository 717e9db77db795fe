package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parlor/internal/bridge"
	"parlor/internal/domain"
)

type CreateRoomRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants" binding:"required,min=1"`
}

type RoomResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

func createRoomHandler(store bridge.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid participants"})
			return
		}
		participants := make([]domain.UserID, 0, len(req.Participants))
		for _, p := range req.Participants {
			participants = append(participants, domain.UserID(p))
		}
		room, err := domain.NewRoom(domain.RoomID(uuid.NewString()), req.Name, participants)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := store.CreateRoom(c.Request.Context(), room); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
			return
		}
		c.JSON(http.StatusCreated, toRoomResponse(room))
	}
}

func getRoomHandler(store bridge.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, err := store.Room(c.Request.Context(), domain.RoomID(c.Param("id")))
		if err == bridge.ErrRoomNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
			return
		}
		c.JSON(http.StatusOK, toRoomResponse(room))
	}
}

func toRoomResponse(room *domain.Room) RoomResponse {
	participants := make([]string, 0, len(room.Participants))
	for _, p := range room.Participants {
		participants = append(participants, string(p))
	}
	return RoomResponse{ID: string(room.ID), Name: room.Name, Participants: participants}
}
