package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pixmart/pixmart/app/models"
	"github.com/pixmart/pixmart/internal/pkg/entitlements"
)

func TestOwnerDecision(t *testing.T) {
	img := &models.Image{UserID: 7}

	assert.Nil(t, ownerDecision(0, img), "anonymous visitor is never the owner")
	assert.Nil(t, ownerDecision(8, img), "other users are not the owner")

	d := ownerDecision(7, img)
	if assert.NotNil(t, d) {
		assert.True(t, d.CanView)
		assert.True(t, d.CanDownload)
	}
}

func TestDownloadTypeFor(t *testing.T) {
	assert.Equal(t, models.DownloadTypeSubscription, downloadTypeFor(&entitlements.AccessDecision{AccessType: entitlements.AccessSubscription}))
	assert.Equal(t, models.DownloadTypePurchase, downloadTypeFor(&entitlements.AccessDecision{AccessType: entitlements.AccessPurchased}))
	assert.Equal(t, models.DownloadTypeFree, downloadTypeFor(&entitlements.AccessDecision{AccessType: entitlements.AccessFree}))
}
