package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	LocaleFR      = "fr"
	LocaleEN      = "en"
	DefaultLocale = LocaleFR
)

var messages = map[string]map[string]string{
	LocaleFR: {
		"error.bad_request":                "Requête invalide",
		"error.unauthorized":               "Non autorisé",
		"error.forbidden":                  "Accès refusé",
		"error.not_found":                  "Ressource introuvable",
		"error.internal":                   "Erreur interne, veuillez réessayer",
		"error.service_unavailable":        "Service momentanément indisponible",
		"error.request_canceled":           "Requête annulée",
		"error.rate_limited":               "Trop de requêtes, réessayez dans %d secondes",
		"error.rate_limit_unavailable":     "Limitation de débit indisponible",
		"error.installation_required":      "Identifiant d'installation manquant",
		"error.phone_invalid":              "Numéro de téléphone invalide",
		"error.reason_invalid":             "Motif de vérification invalide",
		"error.code_invalid":               "Le code doit contenir uniquement des chiffres",
		"error.credentials_missing":        "Identifiants manquants",
		"error.captcha_required":           "Veuillez compléter le captcha",
		"error.captcha_invalid":            "Captcha incorrect",
		"error.captcha_unavailable":        "Captcha indisponible",
		"error.captcha_generate_failed":    "Impossible de générer le captcha",
		"error.captcha_verify_failed":      "Vérification du captcha impossible",
		"error.otp_daily_limit":            "Limite quotidienne atteinte, réessayez demain",
		"error.otp_cooldown":               "Veuillez patienter %d secondes avant de renvoyer le code",
		"error.otp_session_expired":        "Le code a expiré, demandez-en un nouveau",
		"error.otp_already_consumed":       "Ce code a déjà été utilisé",
		"error.otp_incorrect_code":         "Code incorrect, il vous reste %d tentative(s)",
		"error.otp_transient":              "Envoi impossible pour le moment, réessayez",
		"error.otp_no_session":             "Aucune vérification en cours",
		"error.login_invalid_credentials":  "Identifiants incorrects, il vous reste %d tentative(s)",
		"error.login_locked":               "Compte temporairement bloqué, réessayez dans %s",
		"error.login_throttled":            "Veuillez patienter %d secondes avant de réessayer",
		"error.login_verification_blocked": "Vérification du numéro impossible pour le moment",
		"error.auth_backend_unavailable":   "Service d'authentification indisponible",
		"error.operator_key_missing":       "Clé opérateur manquante",
		"error.operator_key_invalid":       "Clé opérateur invalide",
		"error.gateway_key_invalid":        "Clé de passerelle invalide",
		"error.query_failed":               "Échec de la requête",
		"error.login_guard_unlock_failed":  "Échec du déblocage",
	},
	LocaleEN: {
		"error.bad_request":                "Invalid request",
		"error.unauthorized":               "Unauthorized",
		"error.forbidden":                  "Forbidden",
		"error.not_found":                  "Resource not found",
		"error.internal":                   "Internal error, please retry",
		"error.service_unavailable":        "Service temporarily unavailable",
		"error.request_canceled":           "Request canceled",
		"error.rate_limited":               "Too many requests, retry in %d seconds",
		"error.rate_limit_unavailable":     "Rate limiting unavailable",
		"error.installation_required":      "Installation id is missing",
		"error.phone_invalid":              "Invalid phone number",
		"error.reason_invalid":             "Invalid verification reason",
		"error.code_invalid":               "The code must contain digits only",
		"error.credentials_missing":        "Missing credentials",
		"error.captcha_required":           "Please complete the captcha",
		"error.captcha_invalid":            "Incorrect captcha",
		"error.captcha_unavailable":        "Captcha unavailable",
		"error.captcha_generate_failed":    "Failed to generate captcha",
		"error.captcha_verify_failed":      "Captcha verification failed",
		"error.otp_daily_limit":            "Daily limit reached, try again tomorrow",
		"error.otp_cooldown":               "Please wait %d seconds before resending the code",
		"error.otp_session_expired":        "The code has expired, request a new one",
		"error.otp_already_consumed":       "This code has already been used",
		"error.otp_incorrect_code":         "Incorrect code, %d attempt(s) left",
		"error.otp_transient":              "Unable to send right now, please retry",
		"error.otp_no_session":             "No verification in progress",
		"error.login_invalid_credentials":  "Incorrect credentials, %d attempt(s) left",
		"error.login_locked":               "Account temporarily locked, retry in %s",
		"error.login_throttled":            "Please wait %d seconds before retrying",
		"error.login_verification_blocked": "Phone verification is unavailable right now",
		"error.auth_backend_unavailable":   "Authentication service unavailable",
		"error.operator_key_missing":       "Operator key is missing",
		"error.operator_key_invalid":       "Invalid operator key",
		"error.gateway_key_invalid":        "Invalid gateway key",
		"error.query_failed":               "Query failed",
		"error.login_guard_unlock_failed":  "Unlock failed",
	},
}

// NormalizeLocale 归一化语言标识，仅支持 fr / en
func NormalizeLocale(raw string) string {
	locale := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.IndexAny(locale, ",;"); idx >= 0 {
		locale = locale[:idx]
	}
	if idx := strings.IndexAny(locale, "-_"); idx > 0 {
		locale = locale[:idx]
	}
	switch locale {
	case LocaleFR, LocaleEN:
		return locale
	}
	return ""
}

// ResolveLocale 按 ?lang、X-Locale、Accept-Language 顺序解析请求语言
func ResolveLocale(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return DefaultLocale
	}
	candidates := []string{
		c.Query("lang"),
		c.GetHeader("X-Locale"),
		c.GetHeader("Accept-Language"),
	}
	for _, candidate := range candidates {
		if locale := NormalizeLocale(candidate); locale != "" {
			return locale
		}
	}
	return DefaultLocale
}

// T 翻译消息 key，未命中时回退默认语言，再回退 key 本身
func T(locale, key string) string {
	if table, ok := messages[NormalizeLocale(locale)]; ok {
		if msg, ok := table[key]; ok {
			return msg
		}
	}
	if msg, ok := messages[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// Sprintf 翻译并格式化
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}
