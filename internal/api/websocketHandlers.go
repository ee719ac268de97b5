package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/taskmanager"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all connections by default
		return true
	},
}

// observeTasksHandler upgrades the connection and registers it as a task state
// observer. The first frame an observer sees is always a full snapshot;
// registration and snapshot delivery are one atomic step inside the notifier,
// so no update frame can slip in ahead of the snapshot. If the snapshot cannot
// be delivered the connection is torn down immediately rather than left to
// receive incremental updates against unknown state.
func (apictx *APIContext) observeTasksHandler(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Debug().Err(err).Msg("could not upgrade observer connection")
		return
	}

	if err := apictx.notifier.ConnectWithSnapshot(conn, apictx.manager.Snapshot); err != nil {
		log.Debug().Err(err).Msg("could not deliver initial snapshot; dropping observer")
		return
	}

	go apictx.readObserverActions(conn)
}

// readObserverActions consumes inbound frames from an observer until the peer
// goes away. The only supported inbound action is a task cancel request.
func (apictx *APIContext) readObserverActions(conn *websocket.Conn) {
	for {
		var action models.ObserverAction
		if err := conn.ReadJSON(&action); err != nil {
			apictx.notifier.Disconnect(conn)
			return
		}

		if action.Action != models.ObserverActionCancel || action.TaskID == "" {
			continue
		}

		err := apictx.manager.Cancel(action.TaskID)
		if err != nil && !errors.Is(err, taskmanager.ErrTaskNotFound) {
			log.Error().Err(err).Str("task_id", action.TaskID).Msg("could not cancel task for observer")
		}
	}
}
