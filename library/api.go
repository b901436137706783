// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package library

import (
	"fmt"
	"strconv"

	"github.com/chorusfm/chorus/playback"
)

// StreamInfo is the server's answer to a resolve request.
type StreamInfo struct {
	URL       string `json:"url"`
	Format    string `json:"format,omitempty"`
	Available bool   `json:"available"`
}

// CacheStatus reports how much of a podcast episode's audio the
// server has pulled into its local cache. Seeks into uncached bytes
// fail silently, which is why the session asks before trusting one.
type CacheStatus struct {
	Cached           bool    `json:"cached"`
	Downloading      bool    `json:"downloading"`
	DownloadProgress float64 `json:"downloadProgress"`
}

// Progress is a saved listening position for an audiobook or podcast
// episode.
type Progress struct {
	ItemID   string  `json:"itemId"`
	Position float64 `json:"currentTime"`
	Duration float64 `json:"duration"`
	Finished bool    `json:"isFinished"`
}

// StreamURL resolves item to something mpv can open. For tracks
// without a local file the server performs its external fallback
// lookup; when that also fails the result is ErrUnavailable, not a
// broken URL.
func (c *Connection) StreamURL(item playback.Item) (StreamInfo, error) {
	query := defaultQuery(c)
	query.Set("kind", string(item.Kind))
	if item.Kind == playback.KindPodcast {
		podcastID, episodeID, ok := playback.SplitEpisodeID(item.ID)
		if !ok {
			return StreamInfo{}, fmt.Errorf("[StreamURL] malformed podcast id %q", item.ID)
		}
		query.Set("podcastId", podcastID)
		query.Set("episodeId", episodeID)
	} else {
		query.Set("id", item.ID)
	}
	if item.Kind == playback.KindTrack && !item.HasLocalFile {
		query.Set("fallback", "true")
	}

	requestUrl := c.Host + "/api/resolve" + "?" + query.Encode()
	resp, err := c.getResponse("StreamURL", requestUrl)
	if err != nil {
		return StreamInfo{}, err
	}
	if resp.Stream == nil {
		return StreamInfo{}, fmt.Errorf("[StreamURL] server sent no stream info for %s", item.ID)
	}
	if !resp.Stream.Available {
		return StreamInfo{}, fmt.Errorf("[StreamURL] %s: %w", item.ID, ErrUnavailable)
	}
	return *resp.Stream, nil
}

// GetCacheStatus asks whether an episode's audio is fully cached
// server-side. Always fetched fresh; a stale answer would defeat the
// seek-verification machinery.
func (c *Connection) GetCacheStatus(podcastID, episodeID string) (CacheStatus, error) {
	query := defaultQuery(c)
	query.Set("podcastId", podcastID)
	query.Set("episodeId", episodeID)
	requestUrl := c.Host + "/api/podcast/cacheStatus" + "?" + query.Encode()
	resp, err := c.getResponse("GetCacheStatus", requestUrl)
	if err != nil {
		return CacheStatus{}, err
	}
	if resp.Cache == nil {
		return CacheStatus{}, fmt.Errorf("[GetCacheStatus] server sent no cache status for %s:%s", podcastID, episodeID)
	}
	return *resp.Cache, nil
}

// SaveProgress upserts a listening position for an audiobook or
// podcast episode.
func (c *Connection) SaveProgress(itemID string, position, duration float64, finished bool) error {
	query := defaultQuery(c)
	query.Set("id", itemID)
	query.Set("position", strconv.FormatFloat(position, 'f', 3, 64))
	query.Set("duration", strconv.FormatFloat(duration, 'f', 3, 64))
	query.Set("finished", strconv.FormatBool(finished))
	requestUrl := c.Host + "/api/progress/save" + "?" + query.Encode()
	_, err := c.getResponse("SaveProgress", requestUrl)
	return err
}

// LoadProgress fetches the saved position for an item. ok is false
// when the server has none.
func (c *Connection) LoadProgress(itemID string) (Progress, bool, error) {
	query := defaultQuery(c)
	query.Set("id", itemID)
	requestUrl := c.Host + "/api/progress/get" + "?" + query.Encode()
	resp, err := c.getResponse("LoadProgress", requestUrl)
	if err != nil {
		return Progress{}, false, err
	}
	if resp.Progress == nil {
		return Progress{}, false, nil
	}
	return *resp.Progress, true, nil
}
