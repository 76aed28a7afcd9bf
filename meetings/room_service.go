package meetings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	config "github.com/dersly/backend/configs"
)

type RoomClient struct {
	apiBase string
	apiKey  string
	client  *http.Client
}

func NewRoomClient() *RoomClient {
	return &RoomClient{
		apiBase: config.Config("MEETING_API_BASE_URL"),
		apiKey:  config.Config("MEETING_API_KEY"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type createRoomResponse struct {
	ID      string `json:"id"`
	JoinURL string `json:"join_url"`
}

func (c *RoomClient) CreateMeeting(subject string, start time.Time, durationMinutes int) (*Meeting, error) {
	payload := map[string]interface{}{
		"topic":            subject,
		"start_time":       start.Format(time.RFC3339),
		"duration_minutes": durationMinutes,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", c.apiBase+"/rooms", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("meeting provider returned status %s", resp.Status)
	}

	var room createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, err
	}
	return &Meeting{MeetingID: room.ID, JoinURL: room.JoinURL}, nil
}

func (c *RoomClient) DeleteMeeting(meetingID string) error {
	req, err := http.NewRequest("DELETE", fmt.Sprintf("%s/rooms/%s", c.apiBase, meetingID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("meeting provider returned status %s", resp.Status)
	}
	return nil
}
