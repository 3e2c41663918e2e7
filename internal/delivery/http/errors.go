package http

import (
	"errors"
	"net/http"

	"github.com/vogiaan1904/listenroom/internal/auth"
	"github.com/vogiaan1904/listenroom/internal/service"
	pkgErrors "github.com/vogiaan1904/listenroom/pkg/errors"
)

var (
	errUnauthorized   = pkgErrors.NewHTTPError(110001, "Unauthorized").WithStatus(http.StatusUnauthorized)
	errInvalidRequest = pkgErrors.NewHTTPError(110002, "Invalid request").WithStatus(http.StatusBadRequest)
)

// codes is keyed by sentinel. The message is the sentinel's public text.
var codes = map[error]int{
	service.ErrNotHost:           120001,
	service.ErrNotQueueItemOwner: 120002,
	service.ErrCreatorProtected:  120003,
	service.ErrNotAdmin:          120004,

	service.ErrRoomNotFound:        130001,
	service.ErrQueueItemNotFound:   130002,
	service.ErrSongNotFound:        130003,
	service.ErrParticipantNotFound: 130004,

	service.ErrRoomFull:   140001,
	service.ErrRoomClosed: 130001,

	service.ErrInvalidPosition:  150001,
	service.ErrNoSongSelected:   150002,
	service.ErrInvalidRole:      150003,
	service.ErrNoSuccessor:      150004,
	service.ErrNotMember:        150005,
	service.ErrInvalidMessage:   150006,
	service.ErrInvalidRoomName:  150007,
	service.ErrMalformedPayload: 150008,
}

var kindStatus = map[service.ErrorKind]int{
	service.KindAuthorization: http.StatusForbidden,
	service.KindNotFound:      http.StatusNotFound,
	service.KindCapacity:      http.StatusConflict,
	service.KindConcurrency:   http.StatusNotFound,
	service.KindValidation:    http.StatusBadRequest,
}

func (h *Handler) mapHTTPError(err error) error {
	if errors.Is(err, auth.ErrTokenEmpty) || errors.Is(err, auth.ErrTokenInvalid) || errors.Is(err, auth.ErrTokenInvalidClaims) {
		return errUnauthorized
	}

	kind := service.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		return err
	}

	code := 100000
	for sentinel, c := range codes {
		if errors.Is(err, sentinel) {
			code = c
			break
		}
	}

	return pkgErrors.NewHTTPError(code, service.PublicMessage(err)).WithStatus(status)
}
