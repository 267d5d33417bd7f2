// internal/viewer/template.go
package viewer

import "text/template"

// The document is assembled with text/template: every interpolated value is
// either a number or a file name this service generated itself, and the
// script blocks would fight html/template's contextual escaping.
var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1,user-scalable=no">
<title>PhotoBooks Gallery AR - {{.ProjectID}}</title>
<script src="https://aframe.io/releases/1.4.2/aframe.min.js"></script>
<script src="https://cdn.jsdelivr.net/npm/mind-ar@1.2.5/dist/mindar-image-aframe.prod.js"></script>
<style>
body,html{margin:0;padding:0;width:100%;height:100%;overflow:hidden}
.ar-loader{position:fixed;inset:0;background:#fff;display:flex;flex-direction:column;align-items:center;justify-content:center;color:#333;z-index:9999;transition:opacity .6s;font-family:system-ui,-apple-system,sans-serif}
.ar-loader.hidden{opacity:0;pointer-events:none}
.loading-text{font-size:20px;font-weight:600;color:#667eea;text-align:center;padding:0 20px}
#instructions{position:fixed;bottom:30px;left:50%;transform:translateX(-50%);background:rgba(0,0,0,0.65);color:#fff;padding:16px 32px;border-radius:40px;backdrop-filter:blur(12px);font-size:16px;font-weight:600;z-index:100}
#instructions::before{content:"\1F4F8";margin-right:10px;font-size:20px}
#unmute-hint{position:fixed;bottom:100px;left:50%;transform:translateX(-50%);background:rgba(0,0,0,0.85);color:#fff;padding:14px 28px;border-radius:30px;font-size:15px;font-weight:600;z-index:101;display:none}
</style>
</head>
<body>
<div class="ar-loader" id="loading"><div class="loading-text">Приготовьтесь к волшебству</div></div>
<div id="instructions">Наведите камеру на фотографию</div>
<div id="unmute-hint">Нажмите для звука</div>
<a-scene embedded mindar-image="imageTargetSrc:./{{.MarkerFile}};maxTrack:1;filterMinCF:0.0001;filterBeta:0.003;warmupTolerance:5;missTolerance:10" color-space="sRGB" renderer="colorManagement:true;antialias:true;alpha:true" vr-mode-ui="enabled:false" device-orientation-permission-ui="enabled:false">
<a-assets timeout="30000">
{{- range .Overlays}}
{{- if .VideoFile}}
<video id="ar-video-{{.TargetIndex}}" src="./{{.VideoFile}}" preload="auto"{{if $.Loop}} loop{{end}} muted playsinline crossorigin="anonymous"></video>
{{- else}}
<img id="ar-image-{{.TargetIndex}}" src="./{{.ImageFile}}" crossorigin="anonymous">
{{- end}}
{{- if .MaskFile}}
<img id="ar-mask-{{.TargetIndex}}" src="./{{.MaskFile}}" crossorigin="anonymous">
{{- end}}
{{- end}}
</a-assets>
<a-camera position="0 0 0" look-controls="enabled:false"></a-camera>
{{- range .Overlays}}
<a-entity mindar-image-target="targetIndex:{{.TargetIndex}}">
{{- if .VideoFile}}
<a-plane id="ar-plane-{{.TargetIndex}}" rotation="{{$.Rotation.X}} {{$.Rotation.Y}} {{$.Rotation.Z}}" width="1" height="{{printf "%.4f" .PlaneHeight}}" position="{{$.Position.X}} {{$.Position.Y}} {{$.Position.Z}}" material="src:#ar-video-{{.TargetIndex}};shader:flat;transparent:true;opacity:0;side:double{{if .MaskFile}};alphaMap:#ar-mask-{{.TargetIndex}}{{end}}" visible="false" animation__fade="property:material.opacity;from:0;to:1;dur:500;startEvents:showoverlay;easing:easeInOutQuad"></a-plane>
{{- else}}
<a-image id="ar-plane-{{.TargetIndex}}" src="#ar-image-{{.TargetIndex}}" rotation="{{$.Rotation.X}} {{$.Rotation.Y}} {{$.Rotation.Z}}" width="1" height="{{printf "%.4f" .PlaneHeight}}" position="{{$.Position.X}} {{$.Position.Y}} {{$.Position.Z}}" material="shader:flat;transparent:true;opacity:0;side:double" visible="false" animation__fade="property:material.opacity;from:0;to:1;dur:500;startEvents:showoverlay;easing:easeInOutQuad"></a-image>
{{- end}}
</a-entity>
{{- end}}
</a-scene>
<script>
var FIT_MODE={{printf "%q" .FitMode}};
var ZOOM={{printf "%.4f" .Zoom}};
var OFFSET_X={{printf "%.4f" .OffsetX}};
var OFFSET_Y={{printf "%.4f" .OffsetY}};
var ASPECT_LOCKED={{.AspectLocked}};
var AUTO_PLAY={{.AutoPlay}};
var BASE_POS=[{{.Position.X}},{{.Position.Y}},{{.Position.Z}}];
var OVERLAYS=[
{{- range $i, $o := .Overlays}}{{if $i}},{{end}}
{videoAR:{{if $o.VideoAR}}{{printf "%.4f" $o.VideoAR}}{{else}}null{{end}},planeAR:{{printf "%.4f" $o.PlaneAR}},hasVideo:{{if $o.VideoFile}}true{{else}}false{{end}},index:{{$o.TargetIndex}}}
{{- end}}
];
var loading=document.getElementById('loading');
var unmuteHint=document.getElementById('unmute-hint');
var scene=document.querySelector('a-scene');
var isIOS=/iPad|iPhone|iPod/.test(navigator.userAgent)&&!window.MSStream;
scene.addEventListener('arReady',function(){setTimeout(function(){loading.classList.add('hidden')},300)});
scene.addEventListener('arError',function(){loading.innerHTML='<h2>Ошибка доступа</h2><p>Проверьте камеру</p>'});
setTimeout(function(){loading.classList.add('hidden')},5000);

// Cover fit: scale the overlay so the video fills the marker plane, then
// apply zoom and offsets. Each target keeps its own scale pair so switching
// targets never requires a reload.
function coverScale(o){
  var sx=1,sy=1;
  if(FIT_MODE==='cover'&&o.videoAR&&o.planeAR){
    if(o.videoAR>o.planeAR){sy=o.videoAR/o.planeAR}else{sx=o.planeAR/o.videoAR}
  }
  return [sx,sy];
}

OVERLAYS.forEach(function(o){
  var entity=document.querySelector('[mindar-image-target="targetIndex:'+o.index+'"]')||
    document.querySelectorAll('[mindar-image-target]')[o.index];
  var plane=document.getElementById('ar-plane-'+o.index);
  var video=o.hasVideo?document.getElementById('ar-video-'+o.index):null;
  var active=false;
  if(video){video.load()}

  entity.addEventListener('targetFound',function(){
    if(active)return;
    active=true;
    var s=coverScale(o);
    var z=ASPECT_LOCKED?ZOOM:1;
    plane.object3D.scale.set(s[0]*z,s[1]*z,1);
    plane.object3D.position.set(BASE_POS[0]+OFFSET_X,BASE_POS[1]+OFFSET_Y,BASE_POS[2]);
    plane.setAttribute('visible','true');
    plane.emit('showoverlay');
    if(video&&AUTO_PLAY){
      video.currentTime=0;
      video.muted=true;
      var p=video.play();
      if(p){p.then(function(){
        if(!isIOS){setTimeout(function(){video.muted=false},1000)}
        else{
          unmuteHint.style.display='block';
          var unmute=function(){
            if(!video.muted)return;
            video.muted=false;unmuteHint.style.display='none';
            document.body.removeEventListener('click',unmute);
            document.body.removeEventListener('touchstart',unmute);
          };
          document.body.addEventListener('click',unmute);
          document.body.addEventListener('touchstart',unmute);
        }
      }).catch(function(){})}
    }
  });

  entity.addEventListener('targetLost',function(){
    active=false;
    plane.setAttribute('visible','false');
    plane.setAttribute('material','opacity',0);
    if(video){video.pause();video.currentTime=0}
    unmuteHint.style.display='none';
  });
});
</script>
</body>
</html>
`))
