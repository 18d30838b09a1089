// avra - end-to-end encrypted messaging between autonomous agents.
// Copyright (C) 2025 Avra Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package bundledir

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal"
)

var (
	keyUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bundledir_key_uploads",
		Help: "Number of accepted key uploads",
	})
	bundleFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bundledir_bundle_fetches",
		Help: "Number of key bundles served",
	})
)

// Server is an in-memory key directory for development and testing: a single
// process agents publish their prekeys to and fetch each other's bundles
// from. Uploads replace each other wholesale and one-time prekeys are handed
// out at most once, the same way a real deployment would behave.
type Server struct {
	log zerolog.Logger

	lock    sync.Mutex
	uploads map[deviceKey]*avrasignal.PreKeyUpload
}

type deviceKey struct {
	serviceID uuid.UUID
	deviceID  int
}

func NewServer(log zerolog.Logger) *Server {
	return &Server{
		log:     log,
		uploads: make(map[deviceKey]*avrasignal.PreKeyUpload),
	}
}

func (s *Server) Install(router *mux.Router) {
	router.HandleFunc("/v1/keys", s.PutKeys).Methods(http.MethodPut)
	router.HandleFunc("/v1/keys/{serviceID}/{deviceID}", s.GetKeys).Methods(http.MethodGet)
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func jsonResponse(w http.ResponseWriter, status int, response any) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) PutKeys(w http.ResponseWriter, r *http.Request) {
	var upload avrasignal.PreKeyUpload
	err := json.NewDecoder(r.Body).Decode(&upload)
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, errorResponse{Error: "malformed key upload"})
		return
	}
	if upload.ServiceID == uuid.Nil || upload.DeviceID <= 0 {
		jsonResponse(w, http.StatusBadRequest, errorResponse{Error: "missing service or device ID"})
		return
	}
	if len(upload.IdentityKey) == 0 {
		jsonResponse(w, http.StatusBadRequest, errorResponse{Error: "missing identity key"})
		return
	}
	if len(upload.SignedPreKey.PublicKey) == 0 || len(upload.SignedPreKey.Signature) == 0 {
		jsonResponse(w, http.StatusBadRequest, errorResponse{Error: "missing signed prekey"})
		return
	}

	s.lock.Lock()
	s.uploads[deviceKey{serviceID: upload.ServiceID, deviceID: upload.DeviceID}] = &upload
	s.lock.Unlock()
	keyUploads.Inc()
	s.log.Info().
		Stringer("service_id", upload.ServiceID).
		Int("device_id", upload.DeviceID).
		Int("pre_keys", len(upload.PreKeys)).
		Int("kyber_pre_keys", len(upload.KyberPreKeys)).
		Msg("Stored key upload")
	jsonResponse(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) GetKeys(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serviceID, err := uuid.Parse(vars["serviceID"])
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid service ID"})
		return
	}
	deviceID, err := strconv.Atoi(vars["deviceID"])
	if err != nil || deviceID <= 0 {
		jsonResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid device ID"})
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	upload, found := s.uploads[deviceKey{serviceID: serviceID, deviceID: deviceID}]
	if !found {
		jsonResponse(w, http.StatusNotFound, errorResponse{Error: "no keys published for this device"})
		return
	}

	bundle := &avrasignal.PreKeyBundle{
		ServiceID:      upload.ServiceID,
		DeviceID:       upload.DeviceID,
		RegistrationID: upload.RegistrationID,
		IdentityKey:    upload.IdentityKey,
		SignedPreKey:   upload.SignedPreKey,
	}
	if len(upload.PreKeys) > 0 {
		// One-time prekeys are handed out exactly once.
		preKey := upload.PreKeys[0]
		upload.PreKeys = upload.PreKeys[1:]
		bundle.PreKey = &preKey
	}
	if len(upload.KyberPreKeys) > 0 {
		kyberPreKey := upload.KyberPreKeys[0]
		upload.KyberPreKeys = upload.KyberPreKeys[1:]
		bundle.KyberPreKey = &kyberPreKey
	} else if upload.LastResortKyberPreKey != nil {
		// Out of one-shot kyber keys, serve the last-resort key instead.
		bundle.KyberPreKey = upload.LastResortKyberPreKey
	}
	bundleFetches.Inc()
	s.log.Debug().
		Stringer("service_id", serviceID).
		Int("device_id", deviceID).
		Int("remaining_pre_keys", len(upload.PreKeys)).
		Msg("Served key bundle")
	jsonResponse(w, http.StatusOK, bundle)
}
