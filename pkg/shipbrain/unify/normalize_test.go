package unify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

func TestNormalizeCity(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Medellín", "medellin"},
		{"  BOGOTÁ D.C., Cundinamarca", "bogota dc"},
		{"Cali - Valle", "cali valle"},
		{"San   Andrés", "san andres"},
		{"Cúcuta!", "cucuta"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCity(tt.in))
		})
	}

	assert.True(t, SameCity("Medellín", "MEDELLIN, Antioquia"))
	assert.False(t, SameCity("", ""))
}

func TestInferStatus(t *testing.T) {
	tests := []struct {
		text string
		want model.Status
	}{
		{"ENTREGADO", model.StatusDelivered},
		{"Entregado al destinatario", model.StatusDelivered},
		{"No entregado - dirección errada", model.StatusIssue},
		{"NOVEDAD EN ENTREGA", model.StatusIssue},
		{"Entrega fallida", model.StatusIssue},
		{"Devuelto al remitente", model.StatusReturned},
		{"Guía anulada", model.StatusCancelled},
		{"En reparto", model.StatusOutForDelivery},
		{"Out for delivery", model.StatusOutForDelivery},
		{"Disponible en oficina", model.StatusInOffice},
		{"En centro de distribución", model.StatusInDistribution},
		{"Recogido por el mensajero", model.StatusPickedUp},
		{"Guía generada", model.StatusPending},
		{"En tránsito", model.StatusInTransit},
		{"in_office", model.StatusInOffice},
		{"something the carrier made up", model.StatusInTransit},
		{"", model.StatusInTransit},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, InferStatus(tt.text))
		})
	}
}
